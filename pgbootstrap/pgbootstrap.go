// Package pgbootstrap implements the custom resource that runs once the
// Postgres instance exists: it proves the generated credentials work from
// inside the VPC and ensures the configured extensions are installed.
package pgbootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/cfn"
)

// Resource property names set by the stack.
const (
	PropSecretArn    = "SecretArn"
	PropDatabaseName = "DatabaseName"
	PropHost         = "Host"
	PropPort         = "Port"
	PropExtensions   = "Extensions"
)

// ErrMissingProperty is returned when the stack omitted a required property.
var ErrMissingProperty = errors.New("missing resource property")

// Credentials is the JSON shape RDS keeps in an attached secret.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	DBName   string `json:"dbname,omitempty"`
}

// SecretSource returns the credentials stored in a secret.
type SecretSource interface {
	Credentials(ctx context.Context, secretArn string) (Credentials, error)
}

// Database is the part of a Postgres session the bootstrap needs.
type Database interface {
	ServerVersion(ctx context.Context) (string, error)
	EnsureExtension(ctx context.Context, name string) error
	Close(ctx context.Context) error
}

// Connector opens a Database for a connection string.
type Connector func(ctx context.Context, connString string) (Database, error)

// Properties are the decoded resource properties.
type Properties struct {
	SecretArn    string
	DatabaseName string
	Host         string
	Port         int
	Extensions   []string
}

// Handler handles CloudFormation custom resource events.
type Handler struct {
	Secrets SecretSource
	Connect Connector
}

// Handle matches cfn.CustomResourceFunction.
func (h *Handler) Handle(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	logger := log.WithFields(log.Fields{
		"request":  event.RequestType,
		"resource": event.LogicalResourceID,
	})

	if event.RequestType == cfn.RequestDelete {
		logger.Info("nothing to do on delete")
		return event.PhysicalResourceID, nil, nil
	}

	props, err := ParseProperties(event.ResourceProperties)
	if err != nil {
		return "", nil, err
	}
	physicalID := "pgbootstrap-" + props.DatabaseName

	creds, err := h.Secrets.Credentials(ctx, props.SecretArn)
	if err != nil {
		return physicalID, nil, fmt.Errorf("read credentials: %w", err)
	}

	db, err := h.Connect(ctx, ConnString(creds, props))
	if err != nil {
		return physicalID, nil, fmt.Errorf("connect to %s: %w", props.DatabaseName, err)
	}
	defer func() {
		if cerr := db.Close(ctx); cerr != nil {
			logger.WithError(cerr).Warn("closing connection")
		}
	}()

	version, err := db.ServerVersion(ctx)
	if err != nil {
		return physicalID, nil, fmt.Errorf("query server version: %w", err)
	}
	logger.WithField("version", version).Info("connected")

	for _, ext := range props.Extensions {
		if err := db.EnsureExtension(ctx, ext); err != nil {
			return physicalID, nil, fmt.Errorf("ensure extension %s: %w", ext, err)
		}
		logger.WithField("extension", ext).Info("extension present")
	}

	return physicalID, map[string]interface{}{
		"ServerVersion": version,
		"Extensions":    len(props.Extensions),
	}, nil
}

// ParseProperties decodes the custom resource properties. CloudFormation
// delivers every scalar as a string.
func ParseProperties(raw map[string]interface{}) (Properties, error) {
	var p Properties
	var err error

	if p.SecretArn, err = stringProp(raw, PropSecretArn); err != nil {
		return p, err
	}
	if p.DatabaseName, err = stringProp(raw, PropDatabaseName); err != nil {
		return p, err
	}
	// Host and port come from the secret when the stack does not pass them.
	p.Host, _ = raw[PropHost].(string)
	if port, ok := raw[PropPort]; ok {
		if p.Port, err = intValue(port); err != nil {
			return p, fmt.Errorf("property %s: %w", PropPort, err)
		}
	}

	switch exts := raw[PropExtensions].(type) {
	case nil:
	case []interface{}:
		for _, e := range exts {
			s, ok := e.(string)
			if !ok || s == "" {
				return p, fmt.Errorf("property %s: invalid entry %v", PropExtensions, e)
			}
			p.Extensions = append(p.Extensions, s)
		}
	default:
		return p, fmt.Errorf("property %s: expected a list, got %T", PropExtensions, exts)
	}
	return p, nil
}

func stringProp(raw map[string]interface{}, name string) (string, error) {
	s, _ := raw[name].(string)
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingProperty, name)
	}
	return s, nil
}

func intValue(v interface{}) (int, error) {
	switch n := v.(type) {
	case string:
		return strconv.Atoi(n)
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

// ConnString builds a TLS-only Postgres URL. Stack properties win over the
// host and port stored in the secret.
func ConnString(creds Credentials, props Properties) string {
	host := props.Host
	if host == "" {
		host = creds.Host
	}
	port := props.Port
	if port == 0 {
		port = creds.Port
	}
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(creds.Username, creds.Password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + props.DatabaseName,
		RawQuery: "sslmode=require&connect_timeout=10",
	}
	return u.String()
}
