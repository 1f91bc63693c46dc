package pgbootstrap

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	creds Credentials
	err   error
	asked []string
}

func (f *fakeSecrets) Credentials(_ context.Context, arn string) (Credentials, error) {
	f.asked = append(f.asked, arn)
	return f.creds, f.err
}

type fakeDB struct {
	version    string
	failExt    string
	extensions []string
	closed     bool
}

func (f *fakeDB) ServerVersion(context.Context) (string, error) { return f.version, nil }

func (f *fakeDB) EnsureExtension(_ context.Context, name string) error {
	if name == f.failExt {
		return errors.New("permission denied")
	}
	f.extensions = append(f.extensions, name)
	return nil
}

func (f *fakeDB) Close(context.Context) error {
	f.closed = true
	return nil
}

func createEvent(props map[string]interface{}) cfn.Event {
	return cfn.Event{
		RequestType:        cfn.RequestCreate,
		LogicalResourceID:  "PostgresBootstrap",
		ResourceProperties: props,
	}
}

func TestHandleCreate(t *testing.T) {
	secrets := &fakeSecrets{creds: Credentials{Username: "ferdig-postgres", Password: "abc123", Host: "db.internal", Port: 5432}}
	db := &fakeDB{version: "16.4"}
	var gotConn string

	h := &Handler{
		Secrets: secrets,
		Connect: func(_ context.Context, connString string) (Database, error) {
			gotConn = connString
			return db, nil
		},
	}

	id, data, err := h.Handle(context.Background(), createEvent(map[string]interface{}{
		PropSecretArn:    "arn:aws:secretsmanager:eu-central-1:123456789012:secret:pg",
		PropDatabaseName: "ferdig",
		PropExtensions:   []interface{}{"pgcrypto", "uuid-ossp"},
	}))
	require.NoError(t, err)

	assert.Equal(t, "pgbootstrap-ferdig", id)
	assert.Equal(t, "16.4", data["ServerVersion"])
	assert.Equal(t, 2, data["Extensions"])
	assert.Equal(t, []string{"pgcrypto", "uuid-ossp"}, db.extensions)
	assert.True(t, db.closed)
	assert.Equal(t, []string{"arn:aws:secretsmanager:eu-central-1:123456789012:secret:pg"}, secrets.asked)

	u, err := url.Parse(gotConn)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "/ferdig", u.Path)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestHandleDelete(t *testing.T) {
	h := &Handler{
		Secrets: &fakeSecrets{err: errors.New("must not be called")},
		Connect: func(context.Context, string) (Database, error) {
			t.Fatal("connect called on delete")
			return nil, nil
		},
	}

	id, data, err := h.Handle(context.Background(), cfn.Event{
		RequestType:        cfn.RequestDelete,
		PhysicalResourceID: "pgbootstrap-ferdig",
	})
	require.NoError(t, err)
	assert.Equal(t, "pgbootstrap-ferdig", id)
	assert.Nil(t, data)
}

func TestHandleFailures(t *testing.T) {
	props := map[string]interface{}{
		PropSecretArn:    "arn:secret",
		PropDatabaseName: "ferdig",
		PropExtensions:   []interface{}{"pgcrypto"},
	}

	t.Run("missing secret arn", func(t *testing.T) {
		h := &Handler{Secrets: &fakeSecrets{}}
		_, _, err := h.Handle(context.Background(), createEvent(map[string]interface{}{PropDatabaseName: "ferdig"}))
		assert.ErrorIs(t, err, ErrMissingProperty)
	})

	t.Run("secret unavailable", func(t *testing.T) {
		h := &Handler{Secrets: &fakeSecrets{err: errors.New("access denied")}}
		_, _, err := h.Handle(context.Background(), createEvent(props))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read credentials")
	})

	t.Run("extension fails and connection closes", func(t *testing.T) {
		db := &fakeDB{version: "16.4", failExt: "pgcrypto"}
		h := &Handler{
			Secrets: &fakeSecrets{creds: Credentials{Username: "u", Password: "p", Host: "h"}},
			Connect: func(context.Context, string) (Database, error) { return db, nil },
		}
		_, _, err := h.Handle(context.Background(), createEvent(props))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ensure extension pgcrypto")
		assert.True(t, db.closed)
	})
}

func TestParseProperties(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]interface{}
		want    Properties
		wantErr bool
	}{
		{
			name: "string port from cloudformation",
			raw: map[string]interface{}{
				PropSecretArn:    "arn",
				PropDatabaseName: "ferdig",
				PropHost:         "db",
				PropPort:         "5433",
			},
			want: Properties{SecretArn: "arn", DatabaseName: "ferdig", Host: "db", Port: 5433},
		},
		{
			name: "numeric port",
			raw: map[string]interface{}{
				PropSecretArn:    "arn",
				PropDatabaseName: "ferdig",
				PropPort:         float64(5432),
			},
			want: Properties{SecretArn: "arn", DatabaseName: "ferdig", Port: 5432},
		},
		{
			name:    "bad port",
			raw:     map[string]interface{}{PropSecretArn: "arn", PropDatabaseName: "ferdig", PropPort: "x"},
			wantErr: true,
		},
		{
			name:    "extensions not a list",
			raw:     map[string]interface{}{PropSecretArn: "arn", PropDatabaseName: "ferdig", PropExtensions: "pgcrypto"},
			wantErr: true,
		},
		{
			name:    "missing database",
			raw:     map[string]interface{}{PropSecretArn: "arn"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProperties(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnString(t *testing.T) {
	creds := Credentials{Username: "ferdig-postgres", Password: "p@ss/word", Host: "secret-host", Port: 6000}

	t.Run("secret host and port", func(t *testing.T) {
		u, err := url.Parse(ConnString(creds, Properties{DatabaseName: "ferdig"}))
		require.NoError(t, err)
		assert.Equal(t, "secret-host:6000", u.Host)
		pw, _ := u.User.Password()
		assert.Equal(t, "p@ss/word", pw)
	})

	t.Run("properties win", func(t *testing.T) {
		u, err := url.Parse(ConnString(creds, Properties{DatabaseName: "ferdig", Host: "prop-host", Port: 5432}))
		require.NoError(t, err)
		assert.Equal(t, "prop-host:5432", u.Host)
	})

	t.Run("default port", func(t *testing.T) {
		u, err := url.Parse(ConnString(Credentials{Username: "u", Password: "p"}, Properties{DatabaseName: "ferdig", Host: "h"}))
		require.NoError(t, err)
		assert.Equal(t, "5432", u.Port())
	})
}

type fakeSecretsManager struct {
	value *string
}

func (f *fakeSecretsManager) GetSecretValueWithContext(_ aws.Context, in *secretsmanager.GetSecretValueInput, _ ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	return &secretsmanager.GetSecretValueOutput{ARN: in.SecretId, SecretString: f.value}, nil
}

func TestSecretsManagerSource(t *testing.T) {
	t.Run("decodes attached secret", func(t *testing.T) {
		src := &SecretsManagerSource{Client: &fakeSecretsManager{value: aws.String(`{"username":"ferdig-postgres","password":"abc","host":"db","port":5432,"dbname":"ferdig","engine":"postgres"}`)}}
		creds, err := src.Credentials(context.Background(), "arn")
		require.NoError(t, err)
		assert.Equal(t, Credentials{Username: "ferdig-postgres", Password: "abc", Host: "db", Port: 5432, DBName: "ferdig"}, creds)
	})

	t.Run("binary secret", func(t *testing.T) {
		src := &SecretsManagerSource{Client: &fakeSecretsManager{}}
		_, err := src.Credentials(context.Background(), "arn")
		assert.Error(t, err)
	})

	t.Run("missing password", func(t *testing.T) {
		src := &SecretsManagerSource{Client: &fakeSecretsManager{value: aws.String(`{"username":"x"}`)}}
		_, err := src.Credentials(context.Background(), "arn")
		assert.Error(t, err)
	})
}
