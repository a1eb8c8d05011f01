package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// SecretsAPI defines the subset of the Secrets Manager API used by the secret lister.
type SecretsAPI interface {
	ListSecrets(ctx context.Context, input *secretsmanager.ListSecretsInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// SecretLister lists Secrets Manager secrets.
type SecretLister struct {
	client func(region string) SecretsAPI
}

// NewSecretLister creates a lister that obtains a client per region.
func NewSecretLister(client func(region string) SecretsAPI) *SecretLister {
	return &SecretLister{client: client}
}

func (l *SecretLister) Category() classifier.Category { return classifier.SecretStore }
func (l *SecretLister) Global() bool                  { return false }

func (l *SecretLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)
	input := &secretsmanager.ListSecretsInput{}

	var records []Record
	for {
		out, err := client.ListSecrets(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list secrets: %w", err)
		}
		for _, s := range out.SecretList {
			records = append(records, Record{
				ID:       deref(s.Name),
				Region:   region,
				Category: classifier.SecretStore,
				Details: Secret{
					ARN:             deref(s.ARN),
					LastAccessed:    s.LastAccessedDate,
					RotationEnabled: derefBool(s.RotationEnabled),
				},
			})
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}
	return records, nil
}
