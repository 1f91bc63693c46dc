package main

import (
	"context"
	"net/http"

	"github.com/apex/log"
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/joho/godotenv"

	"ferdig-infra/config"
	"ferdig-infra/internal/logging"
	"ferdig-infra/release"
	"ferdig-infra/stack"
)

func main() {
	defer jsii.Close()

	// A local .env is optional; real environments set variables directly.
	_ = godotenv.Load()
	logging.Init()

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.WithError(err).Fatal("loading configuration")
	}

	if cfg.Container.Tag == "" && cfg.Container.VersionURL != "" {
		version, err := release.Fetch(context.Background(), http.DefaultClient, release.Manifest{
			URL:   cfg.Container.VersionURL,
			Field: cfg.Container.VersionField,
		})
		if err != nil {
			log.WithError(err).Fatal("resolving image version")
		}
		cfg.Container.Tag = version
	}

	app := awscdk.NewApp(nil)

	_, err = stack.NewFerdigStack(app, cfg.StackName, &stack.FerdigStackProps{
		StackProps: awscdk.StackProps{
			Env: env(cfg),
		},
		Config: cfg,
	})
	if err != nil {
		log.WithError(err).Fatal("defining stack")
	}

	app.Synth(nil)
}

// env returns nil for an environment-agnostic stack unless both account and
// region are known.
func env(cfg config.Config) *awscdk.Environment {
	if cfg.Account == "" || cfg.Region == "" {
		return nil
	}
	return &awscdk.Environment{
		Account: jsii.String(cfg.Account),
		Region:  jsii.String(cfg.Region),
	}
}
