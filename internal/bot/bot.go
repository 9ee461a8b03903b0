package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"nftverify/internal/config"
	"nftverify/internal/services"
)

const removeWalletButtonID = "remove_wallet"

// Bot держит gateway-сессию Discord и маршрутизирует входящие события
// (slash-команда и кнопка отвязки) в движок верификации. Сессия создаётся
// здесь и отдаётся наружу явным хэндлом — глобального клиента нет.
type Bot struct {
	session *discordgo.Session
	verif   *services.VerificationService
	baseURL string
	guildID string
	command string
	ready   atomic.Bool
}

func New(cfg config.DiscordConfig, verif *services.VerificationService, baseURL string) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	b := &Bot{
		session: session,
		verif:   verif,
		baseURL: baseURL,
		guildID: cfg.GuildID,
		command: cfg.CommandName,
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteraction)
	return b, nil
}

// Session — хэндл для сервиса ролей.
func (b *Bot) Session() *discordgo.Session { return b.session }

// Ready — подключена ли сессия (для /health).
func (b *Bot) Ready() bool { return b.ready.Load() }

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	return nil
}

func (b *Bot) Stop() {
	b.ready.Store(false)
	if err := b.session.Close(); err != nil {
		log.Printf("[bot][close][err] %v", err)
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[bot] logged in as %s", r.User.Username)
	b.ready.Store(true)

	// регистрация команды на гильдии идемпотентна: Discord перезаписывает по имени
	_, err := s.ApplicationCommandCreate(r.User.ID, b.guildID, &discordgo.ApplicationCommand{
		Name:        b.command,
		Description: "Verify your Monadverse NFT ownership to get the holder role",
	})
	if err != nil {
		log.Printf("[bot][command][err] register %q: %v", b.command, err)
		return
	}
	log.Printf("[bot] command /%s registered for guild %s", b.command, b.guildID)
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == b.command {
			b.handleVerifyCommand(s, i)
		}
	case discordgo.InteractionMessageComponent:
		if i.MessageComponentData().CustomID == removeWalletButtonID {
			b.handleRemoveWallet(s, i)
		}
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (b *Bot) handleVerifyCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	userID := interactionUserID(i)
	if userID == "" {
		return
	}
	log.Printf("[bot][command] /%s from user=%s", b.command, userID)

	var components []discordgo.MessageComponent
	header := "**Monadverse NFT Verification**"

	existing, err := b.verif.Status(ctx, userID)
	if err != nil {
		log.Printf("[bot][command][err] status user=%s: %v", userID, err)
	}
	if existing != nil && existing.HasWallet() {
		header = fmt.Sprintf(
			"You're already verified with wallet `%s`\n\nWant to re-verify with a different wallet? Use the link below. Or remove the current one:",
			existing.MaskedWallet(),
		)
		components = append(components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Remove wallet",
					Style:    discordgo.DangerButton,
					CustomID: removeWalletButtonID,
				},
			},
		})
	}

	token, _, err := b.verif.IssueToken(ctx, userID)
	if err != nil {
		log.Printf("[bot][command][err] issue token user=%s: %v", userID, err)
		b.replyEphemeral(s, i, "Something went wrong. Please try again later.", nil)
		return
	}

	minutes := int(b.verif.TTL / time.Minute)
	content := fmt.Sprintf(
		"%s\n\nClick the link below to verify your NFT ownership:\n%s/verify?token=%s\n\n⏰ This link expires in %d minutes.\n\n*After connecting your wallet and signing the verification message, you'll receive the **Monadverse Holder** role if you own the NFT.*",
		header, b.baseURL, token, minutes,
	)
	b.replyEphemeral(s, i, content, components)
}

func (b *Bot) handleRemoveWallet(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	userID := interactionUserID(i)
	if userID == "" {
		return
	}
	log.Printf("[bot][button] remove_wallet from user=%s", userID)

	err := b.verif.RemoveWallet(ctx, userID)
	switch {
	case err == nil:
		b.replyEphemeral(s, i, "Your wallet has been removed and the holder role revoked. Run the command again to re-verify.", nil)
	case errors.Is(err, services.ErrNotVerified):
		b.replyEphemeral(s, i, "You don't have a verified wallet to remove.", nil)
	case errors.Is(err, services.ErrRole):
		// привязка уже снята, откатывать её не будем
		b.replyEphemeral(s, i, "Your wallet was removed, but the role could not be revoked right now. It will be corrected automatically.", nil)
	default:
		log.Printf("[bot][button][err] remove wallet user=%s: %v", userID, err)
		b.replyEphemeral(s, i, "Something went wrong. Please try again.", nil)
	}
}

func (b *Bot) replyEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string, components []discordgo.MessageComponent) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Flags:      discordgo.MessageFlagsEphemeral,
			Components: components,
		},
	})
	if err != nil {
		log.Printf("[bot][reply][err] %v", err)
	}
}
