// Command pgbootstrap is the Lambda behind the Postgres bootstrap custom resource.
package main

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"

	"ferdig-infra/pgbootstrap"
)

func main() {
	log.SetHandler(json.New(os.Stderr))

	sess := session.Must(session.NewSession())
	h := &pgbootstrap.Handler{
		Secrets: &pgbootstrap.SecretsManagerSource{Client: secretsmanager.New(sess)},
		Connect: pgbootstrap.PgxConnect,
	}

	lambda.Start(cfn.LambdaWrap(h.Handle))
}
