package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tipbot-go/internal/config"
	"tipbot-go/internal/strategy"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== TipBot Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit risk knobs")
		fmt.Println("3) Edit strategy")
		fmt.Println("4) Edit relay tip")
		fmt.Println("5) Save config")
		fmt.Println("6) Launch bot")
		fmt.Println("7) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editRisk(reader, cfg)
		case "3":
			editStrategy(reader, cfg)
		case "4":
			editRelay(reader, cfg)
		case "5":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "6":
			launchBot(reader)
		case "7":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	p := cfg.Strategy.Params
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Strategy: %s\n", cfg.Strategy.Mode)
	fmt.Printf("RSI period %d, overbought %.1f, oversold %.1f, min volume %.0f\n", p.RSIPeriod, p.RSIOverbought, p.RSIOversold, p.MinVolume)
	fmt.Printf("MA period %d, min history %d, min price change %.2f%%\n", p.MAPeriod, p.MinHistory, p.MinPriceChange*100)
	fmt.Printf("Risk fraction: %.2f%%\n", cfg.Risk.RiskFraction*100)
	fmt.Printf("Max position size: %.4f\n", cfg.Risk.MaxPositionSize)
	fmt.Printf("Per-trade notional cap: %.2f (0 disables)\n", cfg.Risk.MaxNotionalPerTrade)
	fmt.Printf("Relay tip: %d lamports at %.1f req/s\n", cfg.Relay.TipLamports, cfg.Relay.RequestsPerSecond)
	pairs := make([]string, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		pairs = append(pairs, m.Pair)
	}
	fmt.Println("Markets:", strings.Join(pairs, ", "))
}

func editRisk(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Risk ---")
	cfg.Risk.RiskFraction = promptPercent(reader, "Risk fraction of balance (%)", cfg.Risk.RiskFraction)
	cfg.Risk.MaxPositionSize = promptFloat(reader, "Max position size (base units)", cfg.Risk.MaxPositionSize)
	cfg.Risk.MaxNotionalPerTrade = promptFloat(reader, "Max notional per trade (quote)", cfg.Risk.MaxNotionalPerTrade)
}

func editStrategy(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Strategy ---")
	fmt.Printf("Mode (momentum|trend) [%s]: ", cfg.Strategy.Mode)
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		mode, err := strategy.Normalize(line)
		if err != nil {
			fmt.Printf("%v, keeping %s\n", err, cfg.Strategy.Mode)
		} else {
			cfg.Strategy.Mode = mode
		}
	}
	p := &cfg.Strategy.Params
	p.RSIPeriod = promptInt(reader, "RSI period", p.RSIPeriod)
	p.RSIOverbought = promptFloat(reader, "RSI overbought", p.RSIOverbought)
	p.RSIOversold = promptFloat(reader, "RSI oversold", p.RSIOversold)
	p.MinVolume = promptFloat(reader, "Min 24h volume", p.MinVolume)
	p.MAPeriod = promptInt(reader, "MA period", p.MAPeriod)
	p.MinHistory = promptInt(reader, "Min history (0 = MA period)", p.MinHistory)
	p.MinPriceChange = promptPercent(reader, "Min price change (%)", p.MinPriceChange)
	if err := config.ValidateParams(*p); err != nil {
		fmt.Printf("warning: %v\n", err)
	}
}

func editRelay(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Relay ---")
	cfg.Relay.TipLamports = uint64(promptInt(reader, "Tip (lamports)", int(cfg.Relay.TipLamports)))
	cfg.Relay.RequestsPerSecond = promptFloat(reader, "Relay requests per second", cfg.Relay.RequestsPerSecond)
}

func launchBot(reader *bufio.Reader) {
	fmt.Println("Launching tipbot (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/tipbot", "run", "--config", locateConfig())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start bot: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the bot and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.4g]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.4g\n", current)
		return current
	}
	return val
}

func promptInt(reader *bufio.Reader, label string, current int) int {
	fmt.Printf("%s [%d]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.Atoi(line)
	if err != nil || val < 0 {
		fmt.Printf("invalid integer, keeping %d\n", current)
		return current
	}
	return val
}

func promptPercent(reader *bufio.Reader, label string, current float64) float64 {
	pct := promptFloat(reader, label, current*100)
	return pct / 100
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

// saveConfig refuses to write a config the bot would reject at startup.
func saveConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
