package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"duelchain/config"
	"duelchain/core/events"
	"duelchain/core/genesis"
	"duelchain/core/state"
	"duelchain/core/types"
	"duelchain/native/duel"
	"duelchain/native/token"
	"duelchain/observability"
	"duelchain/observability/logging"
	"duelchain/storage"
)

var configPath = "duelchain.toml"

type env struct {
	cfg      *config.Config
	db       storage.Database
	manager  *state.Manager
	ledger   *token.Ledger
	registry *duel.Registry
	recorder *events.Recorder
}

func main() {
	args := os.Args[1:]
	for len(args) >= 2 && args[0] == "--config" {
		configPath = args[1]
		args = args[2:]
	}
	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	args = args[1:]
	if err := run(command, args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	if command == "commit" {
		return commitCmd(args)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Setup("duelctl", cfg.LogEnvironment, cfg.LogFile)

	e, err := open(cfg)
	if err != nil {
		return err
	}
	defer e.db.Close()

	switch command {
	case "init":
		spec, err := genesis.Load(cfg.GenesisFile)
		if err != nil {
			return err
		}
		if err := spec.Apply(e.manager); err != nil {
			return err
		}
		logger.Info("genesis applied", "genesis", cfg.GenesisFile)
		return nil
	case "balance":
		addr, err := address(args, 0)
		if err != nil {
			return err
		}
		balance, err := e.ledger.BalanceOf(addr)
		if err != nil {
			return err
		}
		fmt.Println(balance.String())
		return nil
	case "supply":
		supply, err := e.ledger.TotalSupply()
		if err != nil {
			return err
		}
		fmt.Println(supply.String())
		return nil
	case "mint":
		caller, to, amount, err := moveArgs(args)
		if err != nil {
			return err
		}
		if err := e.ledger.Mint(caller, to, amount); err != nil {
			return err
		}
	case "burn":
		caller, err := address(args, 0)
		if err != nil {
			return err
		}
		amount, err := amountArg(args, 1)
		if err != nil {
			return err
		}
		if err := e.ledger.Burn(caller, amount); err != nil {
			return err
		}
	case "transfer":
		caller, to, amount, err := moveArgs(args)
		if err != nil {
			return err
		}
		if err := e.ledger.Transfer(caller, to, amount); err != nil {
			return err
		}
	case "approve":
		caller, spender, amount, err := moveArgs(args)
		if err != nil {
			return err
		}
		if err := e.ledger.Approve(caller, spender, amount); err != nil {
			return err
		}
	case "grant-role":
		if len(args) < 2 {
			return fmt.Errorf("usage: grant-role <role> <address>")
		}
		addr, err := address(args, 1)
		if err != nil {
			return err
		}
		if err := e.manager.SetRole(args[0], addr); err != nil {
			return err
		}
	case "revoke-role":
		if len(args) < 2 {
			return fmt.Errorf("usage: revoke-role <role> <address>")
		}
		addr, err := address(args, 1)
		if err != nil {
			return err
		}
		if err := e.manager.RevokeRole(args[0], addr); err != nil {
			return err
		}
	case "challenge":
		if len(args) < 4 {
			return fmt.Errorf("usage: challenge <caller> <defender> <stake> <commit>")
		}
		caller, err := address(args, 0)
		if err != nil {
			return err
		}
		defender, err := address(args, 1)
		if err != nil {
			return err
		}
		stake, err := amountArg(args, 2)
		if err != nil {
			return err
		}
		commit, err := hash(args[3])
		if err != nil {
			return err
		}
		id, err := e.registry.Challenge(caller, defender, stake, commit)
		if err != nil {
			return err
		}
		fmt.Println(id)
	case "accept":
		if len(args) < 3 {
			return fmt.Errorf("usage: accept <id> <caller> <commit>")
		}
		id, err := duelID(args[0])
		if err != nil {
			return err
		}
		caller, err := address(args, 1)
		if err != nil {
			return err
		}
		commit, err := hash(args[2])
		if err != nil {
			return err
		}
		if err := e.registry.Accept(id, caller, commit); err != nil {
			return err
		}
	case "reveal":
		if len(args) < 4 {
			return fmt.Errorf("usage: reveal <id> <caller> <move 1..3> <salt>")
		}
		id, err := duelID(args[0])
		if err != nil {
			return err
		}
		caller, err := address(args, 1)
		if err != nil {
			return err
		}
		moveInt, err := strconv.ParseUint(args[2], 10, 8)
		if err != nil {
			return fmt.Errorf("invalid move %q", args[2])
		}
		salt, err := hash(args[3])
		if err != nil {
			return err
		}
		if err := e.registry.Reveal(id, caller, uint8(moveInt), salt); err != nil {
			return err
		}
	case "timeout":
		if len(args) < 1 {
			return fmt.Errorf("usage: timeout <id>")
		}
		id, err := duelID(args[0])
		if err != nil {
			return err
		}
		if err := e.registry.ClaimTimeout(id); err != nil {
			return err
		}
	case "duel":
		if len(args) < 1 {
			return fmt.Errorf("usage: duel <id>")
		}
		id, err := duelID(args[0])
		if err != nil {
			return err
		}
		d, err := e.registry.Get(id)
		if err != nil {
			return err
		}
		printDuel(d)
		return nil
	case "vault":
		vault := e.registry.Vault()
		fmt.Println("0x" + hex.EncodeToString(vault[:]))
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}

	for _, evt := range e.recorder.Events() {
		printEvent(evt)
	}
	return nil
}

func open(cfg *config.Config) (*env, error) {
	var (
		db  storage.Database
		err error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		db = storage.NewMemDB()
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		db, err = storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.bolt"))
	default:
		db, err = storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	}
	if err != nil {
		return nil, err
	}

	manager := state.NewManager(db)
	recorder := events.NewRecorder()
	emitter := observability.NewMeteredEmitter(recorder)

	ledger := token.NewLedger()
	ledger.SetState(manager)
	ledger.SetAccessGate(manager)
	ledger.SetPauses(manager)
	ledger.SetEmitter(emitter)

	registry := duel.NewRegistry()
	registry.SetState(manager)
	registry.SetLedger(ledger)
	registry.SetPauses(manager)
	registry.SetRevealTimeout(cfg.RevealTimeoutSeconds)
	registry.SetEmitter(emitter)

	return &env{cfg: cfg, db: db, manager: manager, ledger: ledger, registry: registry, recorder: recorder}, nil
}

// commitCmd computes a commitment hash offline, generating a random salt when
// none is supplied.
func commitCmd(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: commit <move 1..3> [salt]")
	}
	moveInt, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid move %q", args[0])
	}
	move, err := duel.ParseMove(uint8(moveInt))
	if err != nil {
		return err
	}
	var salt [duel.SaltSize]byte
	if len(args) > 1 {
		salt, err = hash(args[1])
		if err != nil {
			return err
		}
	} else {
		if _, err := rand.Read(salt[:]); err != nil {
			return err
		}
	}
	commit := duel.Commit(move, salt)
	fmt.Println("move:  ", move.String())
	fmt.Println("salt:  ", "0x"+hex.EncodeToString(salt[:]))
	fmt.Println("commit:", "0x"+hex.EncodeToString(commit[:]))
	return nil
}

func address(args []string, idx int) ([20]byte, error) {
	if len(args) <= idx {
		return [20]byte{}, fmt.Errorf("missing address argument")
	}
	return genesis.ParseAddress(args[idx])
}

func amountArg(args []string, idx int) (*big.Int, error) {
	if len(args) <= idx {
		return nil, fmt.Errorf("missing amount argument")
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(args[idx]), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", args[idx])
	}
	return amount, nil
}

func moveArgs(args []string) ([20]byte, [20]byte, *big.Int, error) {
	from, err := address(args, 0)
	if err != nil {
		return [20]byte{}, [20]byte{}, nil, err
	}
	to, err := address(args, 1)
	if err != nil {
		return [20]byte{}, [20]byte{}, nil, err
	}
	amount, err := amountArg(args, 2)
	if err != nil {
		return [20]byte{}, [20]byte{}, nil, err
	}
	return from, to, amount, nil
}

func duelID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid duel id %q", raw)
	}
	return id, nil
}

func hash(raw string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 64 {
		return out, fmt.Errorf("value must be 32 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, err
	}
	copy(out[:], decoded)
	return out, nil
}

func printDuel(d *duel.Duel) {
	fmt.Println("id:        ", d.ID)
	fmt.Println("challenger:", "0x"+hex.EncodeToString(d.Challenger[:]))
	fmt.Println("defender:  ", "0x"+hex.EncodeToString(d.Defender[:]))
	fmt.Println("stake:     ", d.Stake.String())
	fmt.Println("accepted:  ", d.Accepted)
	if d.Accepted {
		fmt.Println("acceptedAt:", d.AcceptedAt)
	}
	fmt.Println("revealed:  ", d.ChallengerRevealed, "/", d.DefenderRevealed)
	fmt.Println("resolved:  ", d.Resolved)
}

func printEvent(evt events.Event) {
	type payloadEvent interface {
		Event() *types.Event
	}
	fmt.Print("event ", evt.EventType())
	if pe, ok := evt.(payloadEvent); ok && pe.Event() != nil {
		for key, value := range pe.Event().Attributes {
			fmt.Print(" ", key, "=", value)
		}
	}
	fmt.Println()
}

func printUsage() {
	fmt.Println(`Usage: duelctl [--config <path>] <command> [args]

Commands:
  init                                     Apply the genesis file to an empty store
  balance <address>                        Print an account balance
  supply                                   Print the total token supply
  mint <caller> <to> <amount>              Mint supply (caller needs ROLE_MINTER)
  burn <caller> <amount>                   Burn the caller's balance
  transfer <caller> <to> <amount>          Move balance
  approve <caller> <spender> <amount>      Set a spend allowance
  grant-role <role> <address>              Grant a role
  revoke-role <role> <address>             Revoke a role
  commit <move 1..3> [salt]                Compute a commitment hash offline
  challenge <caller> <defender> <stake> <commit>
  accept <id> <caller> <commit>
  reveal <id> <caller> <move 1..3> <salt>
  timeout <id>                             Settle a duel past its reveal window
  duel <id>                                Inspect a duel record
  vault                                    Print the escrow vault address`)
}
