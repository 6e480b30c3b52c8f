package config

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterGetter is the part of the SSM client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadSecrets fills the Binance key pair from Parameter Store when running in
// prod and the parameter names are configured. Values already set (e.g. from
// the environment) are kept.
func (c *Config) LoadSecrets(ctx context.Context) error {
	if c.Log.Environment != "prod" {
		return nil
	}
	if c.Binance.SSM.APIKeyParam == "" && c.Binance.SSM.APISecretParam == "" {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	return c.loadSecretsFrom(ctx, ssm.NewFromConfig(awsCfg))
}

func (c *Config) loadSecretsFrom(ctx context.Context, client ParameterGetter) error {
	fill := func(dst *string, name string) error {
		if *dst != "" || name == "" {
			return nil
		}
		v, err := parameterValue(ctx, client, name, true)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	if err := fill(&c.Binance.APIKey, c.Binance.SSM.APIKeyParam); err != nil {
		return err
	}
	return fill(&c.Binance.APISecret, c.Binance.SSM.APISecretParam)
}

func parameterValue(ctx context.Context, client ParameterGetter, name string, decrypt bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}
	return *result.Parameter.Value, nil
}

// getParameterStoreValue returns the parameter or "" on any failure.
func getParameterStoreValue(parameterName string, decrypt bool) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return ""
	}

	v, err := parameterValue(ctx, ssm.NewFromConfig(cfg), parameterName, decrypt)
	if err != nil {
		return ""
	}
	return v
}
