// Package config loads and validates the settings the ferdig stack is synthesized from.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"
)

// DefaultPath is used when FERDIG_CONFIG is unset.
const DefaultPath = "ferdig.yaml"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Removal policies accepted for stateful resources.
const (
	RemovalPolicyRetain   = "retain"
	RemovalPolicySnapshot = "snapshot"
	RemovalPolicyDestroy  = "destroy"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	schemaErr      error
	compiledSchema *jsonschema.Schema
)

// Config is the full stack configuration.
type Config struct {
	Service       string           `json:"service"`
	StackName     string           `json:"stackName"`
	Account       string           `json:"account,omitempty"`
	Region        string           `json:"region,omitempty"`
	RemovalPolicy string           `json:"removalPolicy"`
	Network       NetworkConfig    `json:"network"`
	Storage       StorageConfig    `json:"storage"`
	Secrets       SecretsConfig    `json:"secrets"`
	Postgres      PostgresConfig   `json:"postgres"`
	DocumentDB    DocumentDBConfig `json:"documentdb"`
	Container     ContainerConfig  `json:"container"`
	Edge          EdgeConfig       `json:"edge"`
}

// NetworkConfig shapes the VPC.
type NetworkConfig struct {
	MaxAzs      int `json:"maxAzs"`
	NatGateways int `json:"natGateways"`
}

// StorageConfig configures the file bucket. An empty BucketName derives one
// from the service, account and region.
type StorageConfig struct {
	BucketName string `json:"bucketName,omitempty"`
}

// SecretsConfig selects whether signing secrets are generated by the stack
// or populated out of band and imported. Imports need the complete ARN,
// including the random suffix Secrets Manager appends to the name.
type SecretsConfig struct {
	Generate   bool   `json:"generate"`
	AuthJwtArn string `json:"authJwtArn,omitempty"`
	SessionArn string `json:"sessionArn,omitempty"`
}

// PostgresConfig configures the relational datastore.
type PostgresConfig struct {
	Username         string          `json:"username"`
	DatabaseName     string          `json:"databaseName"`
	EngineVersion    string          `json:"engineVersion"`
	MajorVersion     string          `json:"majorVersion"`
	InstanceType     string          `json:"instanceType"`
	Port             int             `json:"port"`
	RotationDays     int             `json:"rotationDays"`
	LogRetentionDays int             `json:"logRetentionDays"`
	Bootstrap        BootstrapConfig `json:"bootstrap"`
}

// BootstrapConfig controls the post-creation check of the Postgres instance.
type BootstrapConfig struct {
	Enabled    bool     `json:"enabled"`
	Extensions []string `json:"extensions,omitempty"`
}

// DocumentDBConfig configures the optional document datastore.
type DocumentDBConfig struct {
	Enabled      bool   `json:"enabled"`
	Username     string `json:"username"`
	InstanceType string `json:"instanceType"`
	Instances    int    `json:"instances"`
}

// ContainerConfig describes the single application container.
type ContainerConfig struct {
	Image         string `json:"image"`
	Tag           string `json:"tag,omitempty"`
	EcrRepository string `json:"ecrRepository,omitempty"`
	VersionURL    string `json:"versionURL,omitempty"`
	VersionField  string `json:"versionField,omitempty"`
	Cpu           int    `json:"cpu"`
	MemoryMiB     int    `json:"memoryMiB"`
	Port          int    `json:"port"`

	LogLevel                     string `json:"logLevel,omitempty"`
	EmailUseMailcatcher          bool   `json:"emailUseMailcatcher"`
	EmailDebug                   bool   `json:"emailDebug"`
	AutomationsLogRetentionHours int    `json:"automationsLogRetentionHours"`
	LogRetentionDays             int    `json:"logRetentionDays"`
}

// EdgeConfig configures the load balanced service in front of the task.
type EdgeConfig struct {
	DesiredCount       int               `json:"desiredCount"`
	GracePeriodSeconds int               `json:"gracePeriodSeconds"`
	AssignPublicIP     bool              `json:"assignPublicIp"`
	HealthCheck        HealthCheckConfig `json:"healthCheck"`
	DNS                DNSConfig         `json:"dns"`
}

// HealthCheckConfig configures the target group health check. Path has no
// default because it must match what the deployed application serves.
type HealthCheckConfig struct {
	Path            string `json:"path"`
	TimeoutSeconds  int    `json:"timeoutSeconds"`
	IntervalSeconds int    `json:"intervalSeconds"`
}

// DNSConfig enables the hosted zone, certificate and HTTPS listener.
type DNSConfig struct {
	Enabled    bool   `json:"enabled"`
	ZoneName   string `json:"zoneName,omitempty"`
	DomainName string `json:"domainName,omitempty"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() Config {
	return Config{
		Service:       "ferdig",
		StackName:     "FerdigAwsInfraStack",
		RemovalPolicy: RemovalPolicyRetain,
		Network: NetworkConfig{
			MaxAzs:      2,
			NatGateways: 1,
		},
		Secrets: SecretsConfig{Generate: true},
		Postgres: PostgresConfig{
			Username:         "ferdig-postgres",
			DatabaseName:     "ferdig",
			EngineVersion:    "16.4",
			MajorVersion:     "16",
			InstanceType:     "t3.micro",
			Port:             5432,
			RotationDays:     30,
			LogRetentionDays: 14,
			Bootstrap:        BootstrapConfig{Enabled: true},
		},
		DocumentDB: DocumentDBConfig{
			Enabled:      false,
			Username:     "ferdig-mongo",
			InstanceType: "t3.medium",
			Instances:    1,
		},
		Container: ContainerConfig{
			Image:                        "ferdig/ferdig",
			VersionField:                 "version",
			Cpu:                          256,
			MemoryMiB:                    1024,
			Port:                         443,
			EmailUseMailcatcher:          true,
			EmailDebug:                   false,
			AutomationsLogRetentionHours: 48,
			LogRetentionDays:             14,
		},
		Edge: EdgeConfig{
			DesiredCount:       1,
			GracePeriodSeconds: 30,
			AssignPublicIP:     true,
			HealthCheck: HealthCheckConfig{
				TimeoutSeconds:  10,
				IntervalSeconds: 30,
			},
			DNS: DNSConfig{
				Enabled:    true,
				ZoneName:   "app.ferdig.de",
				DomainName: "app.ferdig.de",
			},
		},
	}
}

// PathFromEnv returns FERDIG_CONFIG or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("FERDIG_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	log.WithField("path", path).Debug("loading configuration")

	cfg, err := Parse(content)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML content over Default after checking it against the
// embedded schema. It does not apply environment overrides or Validate.
func Parse(content []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(content)) == 0 {
		return cfg, nil
	}

	jsonData, err := yaml.YAMLToJSON(content)
	if err != nil {
		return Config{}, fmt.Errorf("convert yaml to json: %w", err)
	}

	sch, err := loadSchema()
	if err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}

	var document any
	if err := json.Unmarshal(jsonData, &document); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := sch.Validate(document); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("config.schema.json")
	})
	return compiledSchema, schemaErr
}

func (c *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"CDK_DEFAULT_ACCOUNT", &c.Account},
		{"CDK_DEFAULT_REGION", &c.Region},
		{"FERDIG_IMAGE_TAG", &c.Container.Tag},
		{"FERDIG_HEALTH_CHECK_PATH", &c.Edge.HealthCheck.Path},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.target = v
		}
	}
}

// Validate enforces the rules the schema cannot express.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Service == "" {
		add("service must be set")
	}
	if c.Network.MaxAzs < 1 {
		add("network.maxAzs must be at least 1, got %d", c.Network.MaxAzs)
	}
	// Tasks, rotation and the bootstrap function all run in private subnets
	// with NAT egress.
	if c.Network.NatGateways < 1 {
		add("network.natGateways must be at least 1, got %d", c.Network.NatGateways)
	}
	if !c.Secrets.Generate {
		if !isSecretArn(c.Secrets.AuthJwtArn) {
			add("secrets.authJwtArn must be a complete secret ARN when generate is false, got %q", c.Secrets.AuthJwtArn)
		}
		if !isSecretArn(c.Secrets.SessionArn) {
			add("secrets.sessionArn must be a complete secret ARN when generate is false, got %q", c.Secrets.SessionArn)
		}
	}
	switch c.RemovalPolicy {
	case RemovalPolicyRetain, RemovalPolicySnapshot, RemovalPolicyDestroy:
	default:
		add("removalPolicy %q is not one of retain, snapshot, destroy", c.RemovalPolicy)
	}

	hc := c.Edge.HealthCheck
	if hc.Path == "" {
		add("edge.healthCheck.path is required and must match the path the application serves")
	} else if !strings.HasPrefix(hc.Path, "/") {
		add("edge.healthCheck.path %q must start with /", hc.Path)
	}
	if hc.TimeoutSeconds >= hc.IntervalSeconds {
		add("edge.healthCheck.timeoutSeconds (%d) must be less than intervalSeconds (%d)", hc.TimeoutSeconds, hc.IntervalSeconds)
	}

	if c.Edge.DNS.Enabled && (c.Edge.DNS.ZoneName == "" || c.Edge.DNS.DomainName == "") {
		add("edge.dns.zoneName and edge.dns.domainName are required when dns is enabled")
	}
	if c.Edge.DNS.Enabled && !inZone(c.Edge.DNS.DomainName, c.Edge.DNS.ZoneName) {
		add("edge.dns.domainName %q is not inside zone %q", c.Edge.DNS.DomainName, c.Edge.DNS.ZoneName)
	}

	if c.Container.Tag != "" && c.Container.EcrRepository == "" && imageHasTag(c.Container.Image) {
		add("container.image %q already carries a tag; set either the image tag or container.tag", c.Container.Image)
	}
	if !validFargateSize(c.Container.Cpu, c.Container.MemoryMiB) {
		add("container cpu %d with memory %d MiB is not a valid Fargate size", c.Container.Cpu, c.Container.MemoryMiB)
	}

	if c.DocumentDB.Enabled && c.DocumentDB.Instances < 1 {
		add("documentdb.instances must be at least 1 when enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// validFargateSize reports whether the CPU and memory pair is one Fargate
// accepts for the 256, 512 and 1024 CPU unit tiers.
func validFargateSize(cpu, memory int) bool {
	switch cpu {
	case 256:
		return memory == 512 || memory == 1024 || memory == 2048
	case 512:
		return memory >= 1024 && memory <= 4096 && memory%1024 == 0
	case 1024:
		return memory >= 2048 && memory <= 8192 && memory%1024 == 0
	}
	return false
}

func imageHasTag(image string) bool {
	name := image[strings.LastIndex(image, "/")+1:]
	return strings.Contains(name, ":")
}

// inZone reports whether domain is the zone apex or a name below it.
func inZone(domain, zone string) bool {
	return domain == zone || strings.HasSuffix(domain, "."+zone)
}

// isSecretArn reports whether arn is a complete Secrets Manager ARN, ending
// in the six character suffix.
func isSecretArn(arn string) bool {
	if !strings.HasPrefix(arn, "arn:") || !strings.Contains(arn, ":secretsmanager:") {
		return false
	}
	_, name, ok := strings.Cut(arn, ":secret:")
	if !ok {
		return false
	}
	i := strings.LastIndex(name, "-")
	return i > 0 && len(name)-i-1 == 6
}
