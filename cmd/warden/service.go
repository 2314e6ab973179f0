package main

import (
	"fmt"
	"log/slog"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/wardenproj/warden/pkg/app"
)

// program adapts the run loop to the service manager interface. The
// run loop blocks, so Start hands it off to a goroutine and Stop
// relies on the manager delivering SIGTERM to the process.
type program struct {
	configPath string
	dataDir    string
	errCh      chan error
}

func (p *program) Start(_ service.Service) error {
	go func() {
		p.errCh <- app.Run(app.RunParams{
			ConfigPath: p.configPath,
			Version:    version,
			Commit:     commit,
			Date:       date,
			DataDir:    p.dataDir,
			LogLevel:   slog.LevelInfo,
		})
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	return nil
}

func newService(configPath, dataDir string) (service.Service, *program, error) {
	prg := &program{
		configPath: configPath,
		dataDir:    dataDir,
		errCh:      make(chan error, 1),
	}

	var args []string
	args = append(args, "service", "run")
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if dataDir != "" {
		args = append(args, "--data-dir", dataDir)
	}

	svc, err := service.New(prg, &service.Config{
		Name:        "warden",
		DisplayName: "Warden",
		Description: "Agent action-control gateway",
		Arguments:   args,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, prg, nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage warden as a system service",
	}
	cmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().String("data-dir", "", "Persistent data directory")

	action := func(name string, fn func(service.Service) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("%s the warden system service", name),
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfgPath, _ := cmd.Flags().GetString("config")
				dataDir, _ := cmd.Flags().GetString("data-dir")
				svc, _, err := newService(cfgPath, dataDir)
				if err != nil {
					return err
				}
				if err := fn(svc); err != nil {
					return err
				}
				fmt.Printf("Service %s: done\n", name)
				return nil
			},
		}
	}

	cmd.AddCommand(
		action("install", func(s service.Service) error { return s.Install() }),
		action("uninstall", func(s service.Service) error { return s.Uninstall() }),
		action("start", func(s service.Service) error { return s.Start() }),
		action("stop", func(s service.Service) error { return s.Stop() }),
		&cobra.Command{
			Use:   "run",
			Short: "Run in service mode (invoked by the service manager)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfgPath, _ := cmd.Flags().GetString("config")
				dataDir, _ := cmd.Flags().GetString("data-dir")
				svc, prg, err := newService(cfgPath, dataDir)
				if err != nil {
					return err
				}
				go func() {
					if err := svc.Run(); err != nil {
						prg.errCh <- err
					}
				}()
				return <-prg.errCh
			},
		},
	)
	return cmd
}
