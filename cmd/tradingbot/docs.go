package main

//go:generate swag init -g cmd/tradingbot/main.go -o docs

// @title           Trading Bot API
// @version         0.1.0
// @description     TradingView alert ingress, execution audit, and daily PnL reports.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
