package stack

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/jsii-runtime-go"

	"ferdig-infra/config"
)

// Resources holds the common values shared by every create function
type Resources struct {
	Stack   awscdk.Stack
	Service string
	Account string
	Region  string

	removalPolicy string
}

func newResources(stack awscdk.Stack, cfg config.Config) *Resources {
	return &Resources{
		Stack:         stack,
		Service:       cfg.Service,
		Account:       *stack.Account(),
		Region:        *stack.Region(),
		removalPolicy: cfg.RemovalPolicy,
	}
}

// name prefixes a resource or construct name with the service, e.g. "ferdig-files".
func (r *Resources) name(suffix string) string {
	return fmt.Sprintf("%s-%s", r.Service, suffix)
}

func (r *Resources) id(suffix string) *string {
	return jsii.String(r.name(suffix))
}

// RemovalPolicy applies to resources without snapshot support.
func (r *Resources) RemovalPolicy() awscdk.RemovalPolicy {
	if r.removalPolicy == config.RemovalPolicyDestroy {
		return awscdk.RemovalPolicy_DESTROY
	}
	return awscdk.RemovalPolicy_RETAIN
}

// DataRemovalPolicy applies to datastores, which may also be snapshotted.
func (r *Resources) DataRemovalPolicy() awscdk.RemovalPolicy {
	switch r.removalPolicy {
	case config.RemovalPolicyDestroy:
		return awscdk.RemovalPolicy_DESTROY
	case config.RemovalPolicySnapshot:
		return awscdk.RemovalPolicy_SNAPSHOT
	}
	return awscdk.RemovalPolicy_RETAIN
}

var retentionSteps = []struct {
	days      int
	retention awslogs.RetentionDays
}{
	{1, awslogs.RetentionDays_ONE_DAY},
	{3, awslogs.RetentionDays_THREE_DAYS},
	{5, awslogs.RetentionDays_FIVE_DAYS},
	{7, awslogs.RetentionDays_ONE_WEEK},
	{14, awslogs.RetentionDays_TWO_WEEKS},
	{30, awslogs.RetentionDays_ONE_MONTH},
	{60, awslogs.RetentionDays_TWO_MONTHS},
	{90, awslogs.RetentionDays_THREE_MONTHS},
	{120, awslogs.RetentionDays_FOUR_MONTHS},
	{150, awslogs.RetentionDays_FIVE_MONTHS},
	{180, awslogs.RetentionDays_SIX_MONTHS},
	{365, awslogs.RetentionDays_ONE_YEAR},
}

// retentionDays rounds days up to the nearest retention CloudWatch supports.
func retentionDays(days int) awslogs.RetentionDays {
	for _, step := range retentionSteps {
		if days <= step.days {
			return step.retention
		}
	}
	return awslogs.RetentionDays_INFINITE
}

// moduleRoot is the directory holding go.mod, used as the Lambda asset source.
func moduleRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("unable to get current file path")
	}
	return filepath.Join(filepath.Dir(filename), "..")
}
