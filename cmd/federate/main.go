package main

import (
	"go.uber.org/fx"

	"github.com/joeydtaylor/steeze-federate/pkg/serverfx"
)

func main() {
	fx.New(
		serverfx.Module(serverfx.Options{
			Service:       "federate",
			ConfigEnv:     "FEDERATE_CONFIG",
			DefaultConfig: "federate.toml",
			ListenAddrEnv: "SERVER_LISTEN_ADDRESS",
			DefaultListen: ":4000",
			TLSCertEnv:    "SSL_SERVER_CERTIFICATE",
			TLSKeyEnv:     "SSL_SERVER_KEY",
		}),
	).Run()
}
