package main

import "messenger-backend/internal/app"

func main() {
	app.Run()
}
