package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manejo de material de firma",
	}

	var (
		out  string
		bits int
	)
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Genera una clave RSA privada en PEM (PKCS#1)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if bits < 2048 {
				return fmt.Errorf("minimum key size is 2048 bits, got %d", bits)
			}
			key, err := rsa.GenerateKey(rand.Reader, bits)
			if err != nil {
				return err
			}
			block := &pem.Block{
				Type:  "RSA PRIVATE KEY",
				Bytes: x509.MarshalPKCS1PrivateKey(key),
			}
			if out == "-" {
				return pem.Encode(os.Stdout, block)
			}
			f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := pem.Encode(f, block); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bits)\n", out, bits)
			return nil
		},
	}
	gen.Flags().StringVar(&out, "out", "signing.pem", "archivo de salida ('-' para stdout)")
	gen.Flags().IntVar(&bits, "bits", 2048, "tamaño de la clave: 2048 (RS256), 3072 (RS384), 4096 (RS512)")

	keys.AddCommand(gen)
	return keys
}
