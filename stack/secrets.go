package stack

import (
	"github.com/aws/aws-cdk-go/awscdk/v2/awssecretsmanager"
	"github.com/aws/jsii-runtime-go"

	"ferdig-infra/config"
)

// SecretResources holds the signing secrets handed to the container by reference
type SecretResources struct {
	AuthJwt awssecretsmanager.ISecret
	Session awssecretsmanager.ISecret
}

// createSecretResources creates the JWT and session signing secrets, or
// imports them by complete ARN when they are populated out of band.
func createSecretResources(resources *Resources, cfg config.SecretsConfig) *SecretResources {
	if !cfg.Generate {
		return &SecretResources{
			AuthJwt: importedSecret(resources, "auth-jwt", cfg.AuthJwtArn),
			Session: importedSecret(resources, "session-secret", cfg.SessionArn),
		}
	}
	return &SecretResources{
		AuthJwt: signingSecret(resources, "auth-jwt"),
		Session: signingSecret(resources, "session-secret"),
	}
}

// importedSecret references an existing secret. A name-only import would
// hand ECS a partial ARN, which Secrets Manager misreads for names ending
// in a hyphen and six characters.
func importedSecret(resources *Resources, suffix, arn string) awssecretsmanager.ISecret {
	return awssecretsmanager.Secret_FromSecretCompleteArn(resources.Stack, resources.id("secret-"+suffix), jsii.String(arn))
}

func signingSecret(resources *Resources, suffix string) awssecretsmanager.ISecret {
	secretName := resources.name("secret-" + suffix)

	return awssecretsmanager.NewSecret(resources.Stack, jsii.String(secretName), &awssecretsmanager.SecretProps{
		SecretName: jsii.String(secretName),
		GenerateSecretString: &awssecretsmanager.SecretStringGenerator{
			SecretStringTemplate:    jsii.String("{}"),
			GenerateStringKey:       jsii.String(SigningSecretField),
			ExcludePunctuation:      jsii.Bool(true),
			IncludeSpace:            jsii.Bool(false),
			RequireEachIncludedType: jsii.Bool(true),
		},
		RemovalPolicy: resources.RemovalPolicy(),
	})
}
