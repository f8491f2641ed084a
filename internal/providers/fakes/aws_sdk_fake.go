package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// FakeSecretsManagerClient is an in-memory AWS Secrets Manager client.
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret names to their string values
	Secrets map[string]string
	// Errors maps secret names to errors to return from any call
	Errors map[string]error
	// ListErr is returned from ListSecrets
	ListErr error
	// OmitName drops Name from Put, Create and Delete responses
	OmitName bool
	// Created records names passed to CreateSecret
	Created []string
}

// NewFakeSecretsManagerClient creates an empty fake client.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

// AddSecretString seeds a secret.
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

func notFound(name string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
	}
}

func (f *FakeSecretsManagerClient) name(name string) *string {
	if f.OmitName {
		return nil
	}
	return aws.String(name)
}

func (f *FakeSecretsManagerClient) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.ToString(params.SecretId)
	if err := f.Errors[key]; err != nil {
		return nil, err
	}
	v, ok := f.Secrets[key]
	if !ok {
		return nil, notFound(key)
	}
	return &secretsmanager.GetSecretValueOutput{Name: aws.String(key), SecretString: aws.String(v)}, nil
}

func (f *FakeSecretsManagerClient) ListSecrets(_ context.Context, _ *secretsmanager.ListSecretsInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return &secretsmanager.ListSecretsOutput{}, nil
}

func (f *FakeSecretsManagerClient) PutSecretValue(_ context.Context, params *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.ToString(params.SecretId)
	if err := f.Errors[key]; err != nil {
		return nil, err
	}
	if _, ok := f.Secrets[key]; !ok {
		return nil, notFound(key)
	}
	f.Secrets[key] = aws.ToString(params.SecretString)
	return &secretsmanager.PutSecretValueOutput{Name: f.name(key)}, nil
}

func (f *FakeSecretsManagerClient) CreateSecret(_ context.Context, params *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.ToString(params.Name)
	if err := f.Errors[key]; err != nil {
		return nil, err
	}
	f.Secrets[key] = aws.ToString(params.SecretString)
	f.Created = append(f.Created, key)
	return &secretsmanager.CreateSecretOutput{Name: f.name(key)}, nil
}

func (f *FakeSecretsManagerClient) DeleteSecret(_ context.Context, params *secretsmanager.DeleteSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.ToString(params.SecretId)
	if err := f.Errors[key]; err != nil {
		return nil, err
	}
	if _, ok := f.Secrets[key]; !ok {
		return nil, notFound(key)
	}
	delete(f.Secrets, key)
	return &secretsmanager.DeleteSecretOutput{Name: f.name(key)}, nil
}
