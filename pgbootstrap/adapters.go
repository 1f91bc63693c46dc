package pgbootstrap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/jackc/pgx/v5"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValueWithContext(aws.Context, *secretsmanager.GetSecretValueInput, ...request.Option) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSource reads credentials from Secrets Manager.
type SecretsManagerSource struct {
	Client SecretsManagerAPI
}

// Credentials implements SecretSource.
func (s *SecretsManagerSource) Credentials(ctx context.Context, secretArn string) (Credentials, error) {
	out, err := s.Client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretArn),
	})
	if err != nil {
		return Credentials{}, err
	}
	if out.SecretString == nil {
		return Credentials{}, fmt.Errorf("secret %s has no string value", secretArn)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(*out.SecretString), &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode secret %s: %w", secretArn, err)
	}
	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, fmt.Errorf("secret %s lacks username or password", secretArn)
	}
	return creds, nil
}

// PgxConnect is a Connector backed by pgx.
func PgxConnect(ctx context.Context, connString string) (Database, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &pgxDatabase{conn: conn}, nil
}

type pgxDatabase struct {
	conn *pgx.Conn
}

func (d *pgxDatabase) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := d.conn.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func (d *pgxDatabase) EnsureExtension(ctx context.Context, name string) error {
	_, err := d.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS "+pgx.Identifier{name}.Sanitize())
	return err
}

func (d *pgxDatabase) Close(ctx context.Context) error {
	return d.conn.Close(ctx)
}
