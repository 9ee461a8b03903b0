package main

import "nftverify/internal/app"

// @title           Monadverse NFT Verification API
// @version         1.0
// @description     Верификация владения NFT через подпись кошелька и выдача роли холдера в Discord
// @BasePath        /
func main() {
	app.Run()
}
