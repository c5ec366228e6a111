// Command hash-password prints the bcrypt hash of a password for use as
// OPERATOR_PASSWORD_HASH.
//
//	go run ./cmd/hash-password 's3cret'
package main

import (
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

func main() {
	if len(os.Args) != 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "usage: hash-password <password>")
		os.Exit(2)
	}
	hash, err := utils.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash-password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(hash))
}
