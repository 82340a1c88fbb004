package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"curvemint/config"
	"curvemint/core/events"
	"curvemint/core/types"
	"curvemint/crypto"
	"curvemint/native/issuance"
	"curvemint/native/token"
	"curvemint/observability/logging"
	"curvemint/observability/metrics"
	"curvemint/observability/otel"
	"curvemint/rpc"
	"curvemint/state"
	"curvemint/storage"
)

const shutdownTimeout = 10 * time.Second

// logEmitter mirrors every engine event into the structured log.
type logEmitter struct {
	log *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	attrs := []any{"type", evt.EventType()}
	if projected, ok := evt.(interface{ Event() *types.Event }); ok {
		if event := projected.Event(); event != nil {
			for k, v := range event.Attributes {
				attrs = append(attrs, k, v)
			}
		}
	}
	l.log.Info("engine event", attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CURVEMINT_ENV"))
	logger := logging.Setup("curvemintd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Environment: cfg.Telemetry.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			logger.Error("Failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	engine, ledger, audit, err := wireEngine(db, cfg, logger)
	if err != nil {
		logger.Error("Failed to wire issuance engine", slog.Any("error", err))
		os.Exit(1)
	}

	info := rpc.TokenInfo{Name: cfg.TokenName, Symbol: cfg.TokenSymbol}
	server := rpc.NewServer(engine, ledger, audit, info, cfg.RPCAuthTokenEnv, logger)

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting JSON-RPC server", "addr", cfg.RPCAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("RPC shutdown failed", slog.Any("error", err))
	}
}

// wireEngine assembles the state manager, token ledger, reserve vault and
// issuance engine from the validated configuration, running genesis on the
// first start.
func wireEngine(db storage.Database, cfg *config.Config, logger *slog.Logger) (*issuance.Engine, *token.Ledger, *issuance.AuditLedger, error) {
	manager := state.NewManager(db)
	ledger := token.NewLedger(manager)
	audit := issuance.NewAuditLedger(manager)

	admin, err := decodeAddr(cfg.AdminAddress)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("admin address: %w", err)
	}
	founder, err := decodeAddr(cfg.FounderAddress)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("founder address: %w", err)
	}
	vault, err := decodeAddr(cfg.VaultAddress)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("vault address: %w", err)
	}
	deployer, err := decodeAddr(cfg.DeployerAddress)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("deployer address: %w", err)
	}

	engine := issuance.NewEngine()
	engine.SetState(manager)
	engine.SetLedger(ledger)
	engine.SetPool(issuance.NewAccountPool(ledger, vault))
	engine.SetEmitter(events.Fanout{issuance.NewRecorder(audit, logger), logEmitter{log: logger}})
	engine.SetMetrics(metrics.Issuance())
	engine.SetAdmin(admin)
	engine.SetFounder(founder)
	if err := engine.SetReserveRatio(cfg.ReserveRatioPpm); err != nil {
		return nil, nil, nil, err
	}

	initialSupply, err := parseAmount(cfg.InitialSupply)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initial supply: %w", err)
	}
	initialReserve, err := parseAmount(cfg.InitialReserve)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initial reserve: %w", err)
	}

	if err := engine.Initialise(deployer, initialSupply, initialReserve); err != nil {
		if !errors.Is(err, issuance.ErrAlreadyInitialised) {
			return nil, nil, nil, err
		}
	} else {
		logger.Info("genesis applied",
			"deployer", cfg.DeployerAddress,
			"initialSupply", initialSupply.String(),
			"initialReserve", initialReserve.String())
	}

	if cfg.FounderPercentage > 0 {
		pct, err := engine.FounderPercentage()
		if err != nil {
			return nil, nil, nil, err
		}
		if pct != cfg.FounderPercentage {
			if err := engine.ChangeFounderPercentage(admin, cfg.FounderPercentage); err != nil {
				return nil, nil, nil, err
			}
		}
	}

	reserve, err := engine.ReserveBalance()
	if err != nil {
		return nil, nil, nil, err
	}
	metrics.Issuance().SetReserveBalance(reserve)

	return engine, ledger, audit, nil
}

func decodeAddr(raw string) ([20]byte, error) {
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Array(), nil
}

func parseAmount(raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}
