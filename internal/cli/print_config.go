package cli

import (
	"context"

	"github.com/calvinalkan/agent-cards/internal/config"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *config.Config) *Command {
	return &Command{
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from. API keys are masked.",
		Exec: func(_ context.Context, io *IO, _ *Call) error {
			return execPrintConfig(io, cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg *config.Config) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("data_dir=" + cfg.DataDirAbs)

	if cfg.User != "" {
		io.Println("user=" + cfg.User)
	}

	io.Println("log_level=" + cfg.LogLevel)
	io.Println("llm.provider=" + cfg.LLM.Provider)
	io.Println("llm.model=" + cfg.LLM.Model)

	if cfg.LLM.BaseURL != "" {
		io.Println("llm.base_url=" + cfg.LLM.BaseURL)
	}

	if cfg.LLM.APIKey != "" {
		io.Println("llm.api_key=" + maskSecret(cfg.LLM.APIKey))
	}

	io.Println("cache.backend=" + cfg.Cache.Backend)

	if cfg.Cache.TTL != "" {
		io.Println("cache.ttl=" + cfg.Cache.TTL)
	}

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}

func maskSecret(s string) string {
	const visible = 4
	if len(s) <= visible {
		return "****"
	}

	return "****" + s[len(s)-visible:]
}
