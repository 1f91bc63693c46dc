package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ferdig.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() Config {
	cfg := Default()
	cfg.Edge.HealthCheck.Path = "/health"
	return cfg
}

func TestLoadRepositoryConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", DefaultPath))
	require.NoError(t, err)

	assert.Equal(t, "ferdig", cfg.Service)
	assert.Equal(t, 2, cfg.Network.MaxAzs)
	assert.Equal(t, "/health", cfg.Edge.HealthCheck.Path)
	assert.True(t, cfg.Secrets.Generate)
	assert.False(t, cfg.DocumentDB.Enabled)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantErr   bool
		checkFunc func(*testing.T, Config)
	}{
		{
			name:    "empty file keeps defaults",
			content: "",
			checkFunc: func(t *testing.T, cfg Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "partial override keeps sibling defaults",
			content: `
postgres:
  databaseName: other
documentdb:
  enabled: true
`,
			checkFunc: func(t *testing.T, cfg Config) {
				assert.Equal(t, "other", cfg.Postgres.DatabaseName)
				assert.Equal(t, "ferdig-postgres", cfg.Postgres.Username)
				assert.True(t, cfg.DocumentDB.Enabled)
				assert.Equal(t, "ferdig-mongo", cfg.DocumentDB.Username)
			},
		},
		{
			name: "explicit false overrides a true default",
			content: `
secrets:
  generate: false
edge:
  dns:
    enabled: false
`,
			checkFunc: func(t *testing.T, cfg Config) {
				assert.False(t, cfg.Secrets.Generate)
				assert.False(t, cfg.Edge.DNS.Enabled)
				assert.Equal(t, "app.ferdig.de", cfg.Edge.DNS.ZoneName)
			},
		},
		{
			name: "bootstrap extensions",
			content: `
postgres:
  bootstrap:
    extensions: [pgcrypto, uuid-ossp]
`,
			checkFunc: func(t *testing.T, cfg Config) {
				assert.True(t, cfg.Postgres.Bootstrap.Enabled)
				assert.Equal(t, []string{"pgcrypto", "uuid-ossp"}, cfg.Postgres.Bootstrap.Extensions)
			},
		},
		{
			name:    "unknown key rejected by schema",
			content: "postgress:\n  username: x\n",
			wantErr: true,
		},
		{
			name:    "wrong type rejected by schema",
			content: "network:\n  maxAzs: two\n",
			wantErr: true,
		},
		{
			name:    "unknown removal policy rejected by schema",
			content: "removalPolicy: keep\n",
			wantErr: true,
		},
		{
			name:    "zero nat gateways rejected by schema",
			content: "network:\n  natGateways: 0\n",
			wantErr: true,
		},
		{
			name:    "secret arn without suffix rejected by schema",
			content: "secrets:\n  generate: false\n  sessionArn: arn:aws:secretsmanager:eu-central-1:123456789012:secret:ferdig-session\n",
			wantErr: true,
		},
		{
			name: "complete secret arns",
			content: `
secrets:
  generate: false
  authJwtArn: arn:aws:secretsmanager:eu-central-1:123456789012:secret:ferdig-secret-auth-jwt-AbC123
  sessionArn: arn:aws:secretsmanager:eu-central-1:123456789012:secret:ferdig-secret-session-secret-XyZ789
`,
			checkFunc: func(t *testing.T, cfg Config) {
				assert.False(t, cfg.Secrets.Generate)
				assert.Equal(t, "arn:aws:secretsmanager:eu-central-1:123456789012:secret:ferdig-secret-session-secret-XyZ789", cfg.Secrets.SessionArn)
			},
		},
		{
			name:    "malformed yaml",
			content: "network: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "edge:\n  healthCheck:\n    path: /health\n")

	t.Setenv("CDK_DEFAULT_ACCOUNT", "123456789012")
	t.Setenv("CDK_DEFAULT_REGION", "eu-central-1")
	t.Setenv("FERDIG_IMAGE_TAG", "2.4.1")
	t.Setenv("FERDIG_HEALTH_CHECK_PATH", "/api/health")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "123456789012", cfg.Account)
	assert.Equal(t, "eu-central-1", cfg.Region)
	assert.Equal(t, "2.4.1", cfg.Container.Tag)
	assert.Equal(t, "/api/health", cfg.Edge.HealthCheck.Path)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("health check path is required", func(t *testing.T) {
		_, err := Load(writeConfig(t, "service: ferdig\n"))
		assert.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "edge.healthCheck.path")
	})
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("FERDIG_CONFIG", "")
	assert.Equal(t, DefaultPath, PathFromEnv())

	t.Setenv("FERDIG_CONFIG", "/etc/ferdig/prod.yaml")
	assert.Equal(t, "/etc/ferdig/prod.yaml", PathFromEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults with path",
			mutate: func(*Config) {},
		},
		{
			name:    "missing health path",
			mutate:  func(c *Config) { c.Edge.HealthCheck.Path = "" },
			wantErr: "edge.healthCheck.path is required",
		},
		{
			name:    "relative health path",
			mutate:  func(c *Config) { c.Edge.HealthCheck.Path = "health" },
			wantErr: "must start with /",
		},
		{
			name: "timeout equal to interval",
			mutate: func(c *Config) {
				c.Edge.HealthCheck.TimeoutSeconds = 30
				c.Edge.HealthCheck.IntervalSeconds = 30
			},
			wantErr: "must be less than intervalSeconds",
		},
		{
			name:    "zero zones",
			mutate:  func(c *Config) { c.Network.MaxAzs = 0 },
			wantErr: "network.maxAzs",
		},
		{
			name:    "domain outside zone",
			mutate:  func(c *Config) { c.Edge.DNS.DomainName = "app.example.com" },
			wantErr: "is not inside zone",
		},
		{
			name: "dns disabled ignores domain",
			mutate: func(c *Config) {
				c.Edge.DNS.Enabled = false
				c.Edge.DNS.ZoneName = ""
				c.Edge.DNS.DomainName = ""
			},
		},
		{
			name:    "invalid fargate size",
			mutate:  func(c *Config) { c.Container.MemoryMiB = 3000 },
			wantErr: "not a valid Fargate size",
		},
		{
			name:   "512 MiB variant",
			mutate: func(c *Config) { c.Container.MemoryMiB = 512 },
		},
		{
			name: "tag given twice",
			mutate: func(c *Config) {
				c.Container.Image = "ferdig/ferdig:1.0.0"
				c.Container.Tag = "1.0.1"
			},
			wantErr: "already carries a tag",
		},
		{
			name: "registry port is not a tag",
			mutate: func(c *Config) {
				c.Container.Image = "registry.local:5000/ferdig/ferdig"
				c.Container.Tag = "1.0.1"
			},
		},
		{
			name:    "no nat gateway",
			mutate:  func(c *Config) { c.Network.NatGateways = 0 },
			wantErr: "network.natGateways",
		},
		{
			name:    "domain shares a suffix but is outside zone",
			mutate:  func(c *Config) { c.Edge.DNS.DomainName = "myapp.ferdig.de" },
			wantErr: "is not inside zone",
		},
		{
			name:   "subdomain of zone",
			mutate: func(c *Config) { c.Edge.DNS.DomainName = "api.app.ferdig.de" },
		},
		{
			name:    "imported secrets without arns",
			mutate:  func(c *Config) { c.Secrets.Generate = false },
			wantErr: "secrets.sessionArn must be a complete secret ARN",
		},
		{
			name: "imported secret by partial arn",
			mutate: func(c *Config) {
				c.Secrets.Generate = false
				c.Secrets.AuthJwtArn = "arn:aws:secretsmanager:eu-central-1:123456789012:secret:ferdig-secret-auth-jwt-AbC123"
				c.Secrets.SessionArn = "arn:aws:secretsmanager:eu-central-1:123456789012:secret:ferdig-session"
			},
			wantErr: "secrets.sessionArn",
		},
		{
			name: "imported secrets by complete arn",
			mutate: func(c *Config) {
				c.Secrets.Generate = false
				c.Secrets.AuthJwtArn = "arn:aws:secretsmanager:eu-central-1:123456789012:secret:ferdig-secret-auth-jwt-AbC123"
				c.Secrets.SessionArn = "arn:aws:secretsmanager:eu-central-1:123456789012:secret:ferdig-secret-session-secret-XyZ789"
			},
		},
		{
			name:    "unknown removal policy",
			mutate:  func(c *Config) { c.RemovalPolicy = "keep" },
			wantErr: "removalPolicy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
