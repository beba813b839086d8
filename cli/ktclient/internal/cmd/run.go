package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/keytrans-sys/keytrans-go/application"
	clientapp "github.com/keytrans-sys/keytrans-go/application/client"
	"github.com/keytrans-sys/keytrans-go/cli"
	"github.com/keytrans-sys/keytrans-go/crypto"
	"github.com/keytrans-sys/keytrans-go/protocol/client"
	"github.com/keytrans-sys/keytrans-go/storage/clientkv"
	"github.com/keytrans-sys/keytrans-go/storage/kv"
	"github.com/keytrans-sys/keytrans-go/storage/kv/badgerkv"
	"github.com/keytrans-sys/keytrans-go/storage/kv/leveldbkv"
)

const help = "- search [aci] [identity-key-hex] (username):\r\n" +
	"	Search for an account in the directory and pin its verified state.\r\n" +
	"- monitor [aci] [identity-key-hex] (username):\r\n" +
	"	Recheck an account this client already searched for.\r\n" +
	"- distinguished:\r\n" +
	"	Refresh the pinned distinguished tree head.\r\n" +
	"- list:\r\n" +
	"	List the accounts this client keeps verified state for.\r\n" +
	"- enable timestamp:\r\n" +
	"	Print timestamp of format <15:04:05.999999999> along with the result.\r\n" +
	"- disable timestamp:\r\n" +
	"	Disable timestamp printing.\r\n" +
	"- help:\r\n" +
	"	Display this message.\r\n" +
	"- exit, q:\r\n" +
	"	Close the REPL and exit the client."

var runCmd = cli.NewRunCommand("key transparency test client", "Run gives you a REPL, so that you can invoke commands to lookup and monitor accounts in a key transparency directory. Currently, it supports:\n"+help, run)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("config", "c", "config.toml",
		"Config file for the client (contains the directory's signing public key etc).")
	runCmd.Flags().BoolP("debug", "d", false, "Turn on debugging mode")
}

func run(cmd *cobra.Command, args []string) {
	isDebugging, _ := strconv.ParseBool(cmd.Flag("debug").Value.String())
	conf := loadConfigOrExit(cmd)
	if conf.Logger == nil {
		conf.Logger = &application.LoggerConfig{Environment: "development"}
	}
	klog := application.NewLogger(conf.Logger)

	var db kv.DB
	switch conf.StoreBackend {
	case clientapp.BadgerBackend:
		db = badgerkv.OpenDB(conf.StorePath)
	default:
		db = leveldbkv.OpenDB(conf.StorePath)
	}
	defer db.Close()
	store := clientkv.New(db)
	klog.Info("Opened the record store",
		"backend", conf.StoreBackend, "path", conf.StorePath)

	conn, err := clientapp.NewDirectoryConn(conf, clientapp.NewHeadVerifier(conf.VerifKey))
	if err != nil {
		klog.Fatal("Cannot set up the directory connection", "error", err)
	}
	kt := client.New(conn)

	state, err := terminal.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		log.Fatal(err)
	}
	defer terminal.Restore(int(os.Stdin.Fd()), state)
	term := terminal.NewTerminal(os.Stdin, "ktclient> ")
	for {
		line, err := term.ReadLine()
		if err != nil {
			writeLineInRawMode(term, err.Error(), isDebugging)
			return
		}

		args := strings.Fields(line)
		if len(args) < 1 {
			writeLineInRawMode(term, `[!] Type "help" for more information.`, isDebugging)
			continue
		}
		cmd := args[0]

		switch cmd {
		case "exit", "q":
			writeLineInRawMode(term, "[+] See ya.", isDebugging)
			return
		case "help":
			writeLineInRawMode(term, help, false) // turn off debugging mode for this command
		case "enable", "disable":
			if len(args) != 2 {
				writeLineInRawMode(term, "[!] Unrecognized command: "+line, isDebugging)
				continue
			}
			switch args[1] {
			case "timestamp":
				if cmd == "enable" {
					isDebugging = true
				} else {
					isDebugging = false
				}
			default:
				writeLineInRawMode(term, "[!] Unrecognized command: "+line, isDebugging)
			}
		case "search":
			if len(args) != 3 && len(args) != 4 {
				writeLineInRawMode(term, "[!] Incorrect number of args to search.", isDebugging)
				continue
			}
			msg := search(kt, store, args[1:])
			writeLineInRawMode(term, msg, isDebugging)
		case "monitor":
			if len(args) != 3 && len(args) != 4 {
				writeLineInRawMode(term, "[!] Incorrect number of args to monitor.", isDebugging)
				continue
			}
			msg := monitor(kt, store, args[1:])
			writeLineInRawMode(term, msg, isDebugging)
		case "distinguished":
			msg := refreshDistinguished(kt, store)
			writeLineInRawMode(term, msg, isDebugging)
		case "list":
			msg := listAccounts(store)
			writeLineInRawMode(term, msg, isDebugging)
		default:
			writeLineInRawMode(term, "[!] Unrecognized command: "+cmd, isDebugging)
		}
	}
}

// makeRequest parses [aci] [identity-key-hex] and an optional username,
// which gets hashed the way the directory stores usernames.
func makeRequest(args []string) (*client.Request, error) {
	aci, err := uuid.Parse(args[0])
	if err != nil {
		return nil, fmt.Errorf("Invalid account identifier: %v", err)
	}
	identityKey, err := hex.DecodeString(args[1])
	if err != nil {
		return nil, fmt.Errorf("Invalid identity key: %v", err)
	}
	req := &client.Request{ACI: aci, IdentityKey: identityKey}
	if len(args) == 3 {
		req.UsernameHash = crypto.Digest([]byte(args[2]))
	}
	return req, nil
}

func search(kt *client.KeyTransparency, store *clientkv.Store, args []string) string {
	req, err := makeRequest(args)
	if err != nil {
		return "[!] " + err.Error()
	}
	state, err := kt.Search(context.Background(), req, store)
	if err != nil {
		return "[!] Search failed: " + err.Error()
	}
	return "[+] Verified! Account state digest: " + hex.EncodeToString(crypto.Digest(state))
}

func monitor(kt *client.KeyTransparency, store *clientkv.Store, args []string) string {
	req, err := makeRequest(args)
	if err != nil {
		return "[!] " + err.Error()
	}
	state, err := kt.Monitor(context.Background(), req, store)
	if err != nil {
		return "[!] Monitor failed: " + err.Error()
	}
	return "[+] Still consistent. Account state digest: " + hex.EncodeToString(crypto.Digest(state))
}

func refreshDistinguished(kt *client.KeyTransparency, store *clientkv.Store) string {
	head, err := kt.RefreshDistinguished(context.Background(), store)
	if err != nil {
		return "[!] Refresh failed: " + err.Error()
	}
	return "[+] Distinguished tree head digest: " + hex.EncodeToString(crypto.Digest(head))
}

func listAccounts(store *clientkv.Store) string {
	acis, err := store.ACIs()
	if err != nil {
		return "[!] Cannot list accounts: " + err.Error()
	}
	if len(acis) == 0 {
		return "[+] No accounts yet."
	}
	lines := make([]string, len(acis))
	for i, aci := range acis {
		lines[i] = aci.String()
	}
	return "[+] " + strings.Join(lines, "\r\n[+] ")
}
