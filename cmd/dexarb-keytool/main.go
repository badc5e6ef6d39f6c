// Command dexarb-keytool encrypts a trading key into the file format read by
// wallet.encrypted_key_path.
//
// The hex key is read from DEXARB_KEYTOOL_PRIVATE_KEY or, when unset, from the
// first line of stdin. The password is read from DEXARB_KEYTOOL_PASSWORD.
// Neither ever appears in arguments or output.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/alanyoungcy/dexarb/internal/crypto"
)

func main() {
	out := flag.String("out", "key.json", "path of the encrypted key file to write")
	force := flag.Bool("force", false, "overwrite an existing file")
	flag.Parse()

	if err := run(*out, *force); err != nil {
		fmt.Fprintf(os.Stderr, "dexarb-keytool: %v\n", err)
		os.Exit(1)
	}
}

func run(out string, force bool) error {
	hexKey := os.Getenv("DEXARB_KEYTOOL_PRIVATE_KEY")
	if hexKey == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read key from stdin: %w", err)
		}
		hexKey = strings.TrimSpace(line)
	}
	password := os.Getenv("DEXARB_KEYTOOL_PASSWORD")
	if password == "" {
		return errors.New("DEXARB_KEYTOOL_PASSWORD must be set")
	}

	key, err := crypto.ParseKey(hexKey)
	if err != nil {
		return err
	}
	blob, err := crypto.EncryptKey(key, password)
	if err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(out, flags, 0o600)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.Write(blob); err != nil {
		f.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close key file: %w", err)
	}

	fmt.Printf("wrote %s\n", out)
	return nil
}
