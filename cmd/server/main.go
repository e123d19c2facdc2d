package main

func main() {
	app := NewApplication()
	app.Run()
}
