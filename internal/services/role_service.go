package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ErrRole — не смогли выдать/снять роль или пользователь не состоит на сервере.
// Ошибка отдельная от остальных: криптографическая часть к этому моменту уже прошла.
var ErrRole = errors.New("discord role operation failed")

// зависший вызов Discord API не должен держать запрос бесконечно
const roleCallTimeout = 10 * time.Second

type RoleManager interface {
	Grant(ctx context.Context, discordID string) error
	Revoke(ctx context.Context, discordID string) error
	Has(ctx context.Context, discordID string) (bool, error)
}

// DiscordRoleService управляет ролью холдера на одном сервере.
// Сессия передаётся снаружи при сборке приложения, своего глобального
// состояния сервис не держит.
type DiscordRoleService struct {
	session *discordgo.Session
	guildID string
	roleID  string
}

func NewDiscordRoleService(session *discordgo.Session, guildID, roleID string) *DiscordRoleService {
	return &DiscordRoleService{session: session, guildID: guildID, roleID: roleID}
}

func (s *DiscordRoleService) member(ctx context.Context, discordID string) (*discordgo.Member, error) {
	member, err := s.session.GuildMember(s.guildID, discordID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: member lookup: %v", ErrRole, err)
	}
	return member, nil
}

func hasRole(member *discordgo.Member, roleID string) bool {
	for _, r := range member.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Grant выдаёт роль. Повторная выдача уже имеющейся роли — no-op.
func (s *DiscordRoleService) Grant(ctx context.Context, discordID string) error {
	ctx, cancel := context.WithTimeout(ctx, roleCallTimeout)
	defer cancel()

	member, err := s.member(ctx, discordID)
	if err != nil {
		return err
	}
	if hasRole(member, s.roleID) {
		return nil
	}
	if err := s.session.GuildMemberRoleAdd(s.guildID, discordID, s.roleID, discordgo.WithContext(ctx)); err != nil {
		log.Printf("[discord][grant][err] user=%s: %v", discordID, err)
		return fmt.Errorf("%w: add: %v", ErrRole, err)
	}
	log.Printf("[discord][grant] role assigned: user=%s", discordID)
	return nil
}

// Revoke снимает роль. Снятие отсутствующей роли — no-op.
func (s *DiscordRoleService) Revoke(ctx context.Context, discordID string) error {
	ctx, cancel := context.WithTimeout(ctx, roleCallTimeout)
	defer cancel()

	member, err := s.member(ctx, discordID)
	if err != nil {
		return err
	}
	if !hasRole(member, s.roleID) {
		return nil
	}
	if err := s.session.GuildMemberRoleRemove(s.guildID, discordID, s.roleID, discordgo.WithContext(ctx)); err != nil {
		log.Printf("[discord][revoke][err] user=%s: %v", discordID, err)
		return fmt.Errorf("%w: remove: %v", ErrRole, err)
	}
	log.Printf("[discord][revoke] role removed: user=%s", discordID)
	return nil
}

func (s *DiscordRoleService) Has(ctx context.Context, discordID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, roleCallTimeout)
	defer cancel()

	member, err := s.member(ctx, discordID)
	if err != nil {
		return false, err
	}
	return hasRole(member, s.roleID), nil
}
