// migrate runs DB migrations from embedded SQL: go run ./cmd/migrate [-direction up|down].
package main

import (
	"flag"
	"fmt"
	"os"

	"sarir/cmd/internal/app"
	"sarir/cmd/internal/app/migrations"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	dsn := app.EnvString("SARIR_DATABASE_URL", "")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "SARIR_DATABASE_URL is not set")
		os.Exit(1)
	}

	if err := migrations.Run(dsn, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
