package main

import "madrasa/internal/app/server"

func main() {
	server.Run()
}
