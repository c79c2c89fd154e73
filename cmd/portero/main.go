package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env es opcional; en prod las vars vienen del entorno real.
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:           "portero",
		Short:         "Servidor de autorización OAuth2/OIDC multi-tenant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("PORTERO_CONFIG", "config.yaml"), "ruta del config YAML (env PORTERO_CONFIG)")

	root.AddCommand(newServeCmd(&cfgPath))
	root.AddCommand(newMigrateCmd(&cfgPath))
	root.AddCommand(newKeysCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
