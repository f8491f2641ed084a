package fakes

import (
	"context"
	"net/http"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

const fakeVaultURL = "https://fake-vault.vault.azure.net/secrets/"

// FakeAzureKeyVaultClient is an in-memory Azure Key Vault client.
type FakeAzureKeyVaultClient struct {
	mu sync.Mutex

	// Secrets maps secret names to their values
	Secrets map[string]string
	// Errors maps secret names to errors to return from any call
	Errors map[string]error
	// AccessErr is returned from CheckAccess
	AccessErr error
	// OmitID drops the ID from Set and Delete responses
	OmitID bool
	// DeletePending is how many GetDeletedSecret calls report a deleted
	// secret as not found yet. Purging it meanwhile fails with 409.
	DeletePending int
	// Purged records successfully purged names
	Purged []string
	// PurgeConflicts counts purges rejected with 409
	PurgeConflicts int

	deleting map[string]int
}

// NewFakeAzureKeyVaultClient creates an empty fake client.
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		Secrets: make(map[string]string),
		Errors:   make(map[string]error),
		deleting: make(map[string]int),
	}
}

// AddSecret seeds a secret.
func (f *FakeAzureKeyVaultClient) AddSecret(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

func azureNotFound() error {
	return &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "SecretNotFound"}
}

func (f *FakeAzureKeyVaultClient) id(name string) *azsecrets.ID {
	if f.OmitID {
		return nil
	}
	return to.Ptr(azsecrets.ID(fakeVaultURL + name))
}

func (f *FakeAzureKeyVaultClient) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors[name]; err != nil {
		return azsecrets.GetSecretResponse{}, err
	}
	v, ok := f.Secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, azureNotFound()
	}
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{ID: to.Ptr(azsecrets.ID(fakeVaultURL + name)), Value: to.Ptr(v)},
	}, nil
}

func (f *FakeAzureKeyVaultClient) SetSecret(_ context.Context, name string, parameters azsecrets.SetSecretParameters, _ *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors[name]; err != nil {
		return azsecrets.SetSecretResponse{}, err
	}
	if parameters.Value != nil {
		f.Secrets[name] = *parameters.Value
	}
	return azsecrets.SetSecretResponse{
		Secret: azsecrets.Secret{ID: f.id(name), Value: parameters.Value},
	}, nil
}

func (f *FakeAzureKeyVaultClient) DeleteSecret(_ context.Context, name string, _ *azsecrets.DeleteSecretOptions) (azsecrets.DeleteSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors[name]; err != nil {
		return azsecrets.DeleteSecretResponse{}, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return azsecrets.DeleteSecretResponse{}, azureNotFound()
	}
	delete(f.Secrets, name)
	f.deleting[name] = f.DeletePending
	return azsecrets.DeleteSecretResponse{
		DeletedSecret: azsecrets.DeletedSecret{ID: f.id(name)},
	}, nil
}

func (f *FakeAzureKeyVaultClient) GetDeletedSecret(_ context.Context, name string, _ *azsecrets.GetDeletedSecretOptions) (azsecrets.GetDeletedSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pending, ok := f.deleting[name]
	if !ok {
		return azsecrets.GetDeletedSecretResponse{}, azureNotFound()
	}
	if pending > 0 {
		f.deleting[name] = pending - 1
		return azsecrets.GetDeletedSecretResponse{}, azureNotFound()
	}
	return azsecrets.GetDeletedSecretResponse{
		DeletedSecret: azsecrets.DeletedSecret{ID: to.Ptr(azsecrets.ID(fakeVaultURL + name))},
	}, nil
}

func (f *FakeAzureKeyVaultClient) PurgeDeletedSecret(_ context.Context, name string, _ *azsecrets.PurgeDeletedSecretOptions) (azsecrets.PurgeDeletedSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pending, ok := f.deleting[name]
	if !ok {
		return azsecrets.PurgeDeletedSecretResponse{}, azureNotFound()
	}
	if pending > 0 {
		f.PurgeConflicts++
		return azsecrets.PurgeDeletedSecretResponse{}, &azcore.ResponseError{StatusCode: http.StatusConflict, ErrorCode: "Conflict"}
	}
	delete(f.deleting, name)
	f.Purged = append(f.Purged, name)
	return azsecrets.PurgeDeletedSecretResponse{}, nil
}

func (f *FakeAzureKeyVaultClient) CheckAccess(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.AccessErr
}
