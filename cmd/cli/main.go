package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"

	"punter/internal/bridge"
	"punter/internal/creds"
	"punter/internal/mock"
	"punter/internal/store"
)

func main() {
	var (
		url      = flag.String("url", getEnv("PUNTER_URL", "ws://localhost:8080/ws"), "platform websocket url")
		name     = flag.String("name", "", "account name (with -password: log in on start)")
		password = flag.String("password", "", "account password")
		register = flag.Bool("register", false, "create the account instead of logging in")
		credsDir = flag.String("creds", getEnv("PUNTER_CREDS_DIR", "."), "directory for the cached session tokens")
		useRedis = flag.Bool("redis", false, "keep session tokens in redis (REDIS_URL) instead of a file")
	)
	flag.Parse()

	// Offline fairness check: verify <serverSeed> <clientSeed> <nonce> <multiplier>
	if flag.Arg(0) == "verify" {
		runVerify(flag.Args()[1:])
		return
	}

	var tokenStore creds.Store
	if *useRedis {
		r := creds.NewRedis()
		if r == nil {
			log.Fatal("[CLI] Redis credential store unavailable")
		}
		tokenStore = r
	} else {
		tokenStore = creds.NewFile(*credsDir)
	}

	b := bridge.New(bridge.Config{URL: *url, Creds: tokenStore})
	defer b.Close()

	b.Session().Subscribe(func(st bridge.SessionState) {
		if st.Authenticated {
			fmt.Printf("-- %s | balance %s (+%s bonus)\n", st.Name, st.BalanceMain, st.BalanceBonus)
		}
	})

	ctx := context.Background()
	if err := b.EnsureReady(ctx); err != nil {
		log.Fatalf("[CLI] Connect failed: %v", err)
	}

	if *name != "" && *password != "" {
		var err error
		if *register {
			err = b.Register(ctx, *name, *password)
		} else {
			err = b.Login(ctx, *name, *password)
		}
		if err != nil {
			log.Fatalf("[CLI] Auth failed: %v", err)
		}
	} else if !b.Session().State().Authenticated {
		fmt.Println("not signed in; use: login <name> <password> or register <name> <password>")
	}

	toasts := store.NewToasts(b.Scheduler())
	toasts.Subscribe(func(st store.ToastState) {
		for _, t := range st.Toasts {
			fmt.Printf("[%s] %s\n", t.Kind, t.Text)
		}
	})

	dice := store.NewDice(b, toasts)
	dice.Subscribe(func(store.DiceState) {})

	crash := store.NewCrash(b, toasts)
	lastPhase := store.CrashPhase("")
	crash.Subscribe(func(st store.CrashState) {
		if st.Phase == lastPhase {
			return
		}
		lastPhase = st.Phase
		switch st.Phase {
		case store.CrashBetting:
			fmt.Printf("crash: betting open (round %s)\n", st.RoundID)
		case store.CrashRunning:
			fmt.Println("crash: running")
		case store.CrashEnded:
			fmt.Printf("crash: crashed at %.2fx\n", st.Multiplier)
		}
	})

	chat := store.NewChat(b, toasts)
	seen := 0
	chat.Subscribe(func(st store.ChatState) {
		for ; seen < len(st.Messages); seen++ {
			m := st.Messages[seen]
			fmt.Printf("chat %s %s: %s\n", m.Time, m.Name, m.Text)
		}
	})

	repl(ctx, b, dice, crash, chat)
}

func repl(ctx context.Context, b *bridge.Bridge, dice *store.Dice, crash *store.Crash, chat *store.Chat) {
	sc := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: login, register, dice <amt> <chance> <under|over>, crash <amt> [auto], cashout, chat <text>, balance, quit")
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return
		case "login", "register":
			if len(fields) != 3 {
				fmt.Printf("usage: %s <name> <password>\n", fields[0])
				continue
			}
			var err error
			if fields[0] == "register" {
				err = b.Register(ctx, fields[1], fields[2])
			} else {
				err = b.Login(ctx, fields[1], fields[2])
			}
			if err != nil {
				fmt.Printf("auth failed: %v\n", err)
			}
		case "logout":
			b.Logout(ctx)
			fmt.Println("signed out")
		case "dice":
			if len(fields) != 4 {
				fmt.Println("usage: dice <amount> <chance> <under|over>")
				continue
			}
			chance, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				fmt.Println("bad chance")
				continue
			}
			if err := dice.Bet(ctx, fields[1], chance, fields[3]); err != nil {
				fmt.Printf("dice: %v\n", err)
				continue
			}
			if hist := dice.State().History; len(hist) > 0 {
				r := hist[0]
				fmt.Printf("dice: rolled %.2f, win=%v, profit=%s\n", r.Roll, r.Win, r.Profit)
			}
		case "crash":
			if len(fields) < 2 {
				fmt.Println("usage: crash <amount> [autoCashout]")
				continue
			}
			auto := 0.0
			if len(fields) > 2 {
				auto, _ = strconv.ParseFloat(fields[2], 64)
			}
			if err := crash.Bet(ctx, fields[1], auto); err != nil {
				fmt.Printf("crash: %v\n", err)
			}
		case "cashout":
			if err := crash.Cashout(ctx); err != nil {
				fmt.Printf("cashout: %v\n", err)
			}
		case "chat":
			if err := chat.Send(ctx, strings.Join(fields[1:], " ")); err != nil {
				fmt.Printf("chat: %v\n", err)
			}
		case "balance":
			st := b.Session().State()
			fmt.Printf("balance %s (+%s bonus)\n", st.BalanceMain, st.BalanceBonus)
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func runVerify(args []string) {
	if len(args) != 4 {
		fmt.Println("usage: verify <serverSeed> <clientSeed> <nonce> <multiplier>")
		os.Exit(1)
	}
	nonce, err := strconv.Atoi(args[2])
	if err != nil {
		log.Fatalf("[CLI] Bad nonce: %v", err)
	}
	claimed, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		log.Fatalf("[CLI] Bad multiplier: %v", err)
	}
	point := mock.CrashPoint(args[0], args[1], nonce)
	if mock.VerifyCrashPoint(args[0], args[1], nonce, claimed) {
		fmt.Printf("OK: seeds produce %.2fx\n", point)
		return
	}
	fmt.Printf("MISMATCH: seeds produce %.2fx, claimed %.2fx\n", point, claimed)
	os.Exit(1)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
