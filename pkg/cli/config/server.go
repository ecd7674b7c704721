package config

import (
	"github.com/urfave/cli/v3"

	controller "github.com/m-mizutani/gitpulse/pkg/controller/http"
)

// Server holds listener configuration
type Server struct {
	HookAddr       string
	SubscriberAddr string
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "hook-addr",
			Usage:       "Push channel listen address (loopback only)",
			Value:       controller.DefaultHookAddr,
			Destination: &c.HookAddr,
			Sources:     cli.EnvVars("GITPULSE_HOOK_ADDR"),
		},
		&cli.StringFlag{
			Name:        "subscriber-addr",
			Usage:       "Subscriber channel listen address (loopback only)",
			Value:       controller.DefaultSubscriberAddr,
			Destination: &c.SubscriberAddr,
			Sources:     cli.EnvVars("GITPULSE_SUBSCRIBER_ADDR"),
		},
	}
}
