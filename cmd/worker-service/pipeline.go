package main

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/cuongbtq/pool-relayer/internal/config"
	"github.com/cuongbtq/pool-relayer/internal/relayer/chain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/compliance"
	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/errclass"
	"github.com/cuongbtq/pool-relayer/internal/relayer/fee"
	"github.com/cuongbtq/pool-relayer/internal/relayer/processor"
	"github.com/cuongbtq/pool-relayer/internal/relayer/publish"
	"github.com/cuongbtq/pool-relayer/internal/relayer/submit"
	"github.com/cuongbtq/pool-relayer/shared/logger"
	"github.com/cuongbtq/pool-relayer/shared/metrics"
	"github.com/ethereum/go-ethereum/common"
)

type pipeline struct {
	processor *processor.TransactionProcessor
	sender    common.Address
}

// buildPipeline assembles the relay stages for one network
func buildPipeline(
	cfg *config.Config,
	network chain.Network,
	client chain.Client,
	store domain.JobStore,
	m *metrics.Metrics,
	appLogger *logger.Logger,
) (*pipeline, error) {
	quotes := fee.NewOracleSource(&fee.OracleConfig{
		URL:      cfg.GasOracle.URL,
		Timeout:  cfg.GasOracle.Timeout,
		RetryMax: cfg.GasOracle.RetryMax,
		Node:     client,
		Logger:   appLogger.Component("gas_oracle"),
	})

	schedule := fee.ServiceFeeSchedule{WithdrawalPercentBps: cfg.Fee.WithdrawalPercentBps}
	if cfg.Fee.TransferFlat != "" {
		flat, err := config.ParseWei(cfg.Fee.TransferFlat)
		if err != nil {
			return nil, err
		}
		schedule.TransferFlat = flat
	}

	validator, err := fee.NewValidator(&fee.ValidatorConfig{
		Quotes:   quotes,
		GasLimit: network.GasLimit,
		Schedule: schedule,
		Policy:   fee.Policy(cfg.Fee.Policy),
		Logger:   appLogger.Component("fee"),
	})
	if err != nil {
		return nil, err
	}

	verifier, err := buildVerifier(&cfg.Compliance, client, appLogger.Component("compliance"))
	if err != nil {
		return nil, err
	}

	publisher := publish.NewPublisher(publish.NewPinataStore(&publish.PinataConfig{
		URL:       cfg.IPFS.PinataURL,
		APIKey:    cfg.IPFS.APIKey,
		SecretKey: cfg.IPFS.SecretKey,
		Timeout:   cfg.IPFS.Timeout,
		Logger:    appLogger.Component("pinata"),
	}), appLogger.Component("publish"))

	pool, err := chain.NewPool(network.PoolAddress)
	if err != nil {
		return nil, err
	}

	key, err := submit.ParsePrivateKey(cfg.Relayer.PrivateKey)
	if err != nil {
		return nil, err
	}

	var maxGasPrice *big.Int
	if cfg.TxManager.MaxGasPrice != "" {
		if maxGasPrice, err = config.ParseWei(cfg.TxManager.MaxGasPrice); err != nil {
			return nil, err
		}
	}

	manager, err := submit.NewEthTxManager(&submit.TxManagerConfig{
		Client:        client,
		ChainID:       big.NewInt(network.ChainID),
		PrivateKey:    key,
		Confirmations: cfg.TxManager.Confirmations,
		PollInterval:  cfg.TxManager.PollInterval,
		BumpAfter:     cfg.TxManager.BumpAfter,
		BumpPercent:   cfg.TxManager.BumpPercent,
		MaxGasPrice:   maxGasPrice,
		Logger:        appLogger.Component("tx_manager"),
	})
	if err != nil {
		return nil, err
	}

	submitter, err := submit.NewSubmitter(&submit.Config{
		Pool:     pool,
		GasLimit: network.GasLimit,
		Quotes:   quotes,
		Manager:  manager,
		Logger:   appLogger.Component("submitter"),
	})
	if err != nil {
		return nil, err
	}

	proc, err := processor.NewTransactionProcessor(&processor.Config{
		RewardAddress: common.HexToAddress(cfg.Relayer.RewardAddress),
		Store:         store,
		Fees:          validator,
		Proofs:        verifier,
		Publisher:     publisher,
		Submitter:     submitter,
		Receipts:      client,
		Classifier:    errclass.New(),
		Metrics:       m,
		Logger:        appLogger.Component("processor"),
	})
	if err != nil {
		return nil, err
	}

	return &pipeline{processor: proc, sender: manager.Address()}, nil
}

func buildVerifier(cfg *config.ComplianceConfig, client chain.Client, logger *slog.Logger) (*compliance.Verifier, error) {
	params, err := compliance.LoadPublicParams(cfg.PublicParamsPath)
	if err != nil {
		return nil, err
	}

	roots, err := buildRootAuthenticator(&cfg.RootCheck, client, logger)
	if err != nil {
		return nil, err
	}

	return compliance.NewVerifier(&compliance.Config{
		Engine: compliance.NewHTTPEngine(&compliance.HTTPEngineConfig{
			URL:      cfg.VerifierURL,
			Timeout:  cfg.VerifierTimeout,
			RetryMax: cfg.VerifierRetryMax,
			Logger:   logger,
		}),
		Params: params,
		Roots:  roots,
		Logger: logger,
	})
}

func buildRootAuthenticator(cfg *config.RootCheckConfig, client chain.Client, logger *slog.Logger) (compliance.RootAuthenticator, error) {
	switch cfg.Mode {
	case config.RootCheckContract:
		allowed, err := compliance.NewRootSet(cfg.AllowedRoots)
		if err != nil {
			return nil, err
		}
		return compliance.NewContractRoots(client, common.HexToAddress(cfg.TxRecordsContract), allowed)

	case config.RootCheckStatic:
		txRecords, err := compliance.NewRootSet(cfg.TxRecordsRoots)
		if err != nil {
			return nil, err
		}
		allowed, err := compliance.NewRootSet(cfg.AllowedRoots)
		if err != nil {
			return nil, err
		}
		return &compliance.StaticRoots{TxRecords: txRecords, Allowed: allowed}, nil

	case config.RootCheckNone:
		logger.Warn("Compliance root authentication is disabled")
		return compliance.NoRootCheck{}, nil

	default:
		return nil, fmt.Errorf("unknown root check mode %q", cfg.Mode)
	}
}
