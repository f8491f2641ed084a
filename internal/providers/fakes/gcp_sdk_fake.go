package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FakeGCPSecretManagerClient is an in-memory GCP Secret Manager client.
// Secrets are keyed by full resource name, projects/<p>/secrets/<s>.
type FakeGCPSecretManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret resource names to their latest value
	Secrets map[string]string
	// Versions counts versions per secret
	Versions map[string]int
	// Errors maps secret resource names to errors to return from any call
	Errors map[string]error
	// AccessErr is returned from CheckAccess
	AccessErr error
	// OmitVersionName drops the name from AddSecretVersion responses
	OmitVersionName bool
	// Closed is set by Close
	Closed bool
}

// NewFakeGCPSecretManagerClient creates an empty fake client.
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Secrets:  make(map[string]string),
		Versions: make(map[string]int),
		Errors:   make(map[string]error),
	}
}

// AddSecret seeds a secret in project.
func (f *FakeGCPSecretManagerClient) AddSecret(project, name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("projects/%s/secrets/%s", project, name)
	f.Secrets[key] = value
	f.Versions[key] = 1
}

func (f *FakeGCPSecretManagerClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	secret := strings.TrimSuffix(req.GetName(), "/versions/latest")
	if err := f.Errors[secret]; err != nil {
		return nil, err
	}
	v, ok := f.Secrets[secret]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found", secret)
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    fmt.Sprintf("%s/versions/%d", secret, f.Versions[secret]),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(v)},
	}, nil
}

func (f *FakeGCPSecretManagerClient) AddSecretVersion(_ context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	secret := req.GetParent()
	if err := f.Errors[secret]; err != nil {
		return nil, err
	}
	if _, ok := f.Versions[secret]; !ok {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found", secret)
	}
	f.Versions[secret]++
	f.Secrets[secret] = string(req.GetPayload().GetData())

	if f.OmitVersionName {
		return &secretmanagerpb.SecretVersion{}, nil
	}
	return &secretmanagerpb.SecretVersion{Name: fmt.Sprintf("%s/versions/%d", secret, f.Versions[secret])}, nil
}

func (f *FakeGCPSecretManagerClient) CreateSecret(_ context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	secret := req.GetParent() + "/secrets/" + req.GetSecretId()
	if err := f.Errors[secret]; err != nil {
		return nil, err
	}
	if _, ok := f.Versions[secret]; ok {
		return nil, status.Errorf(codes.AlreadyExists, "Secret [%s] already exists", secret)
	}
	if req.GetSecret().GetReplication().GetAutomatic() == nil {
		return nil, status.Error(codes.InvalidArgument, "replication policy required")
	}
	f.Versions[secret] = 0
	return &secretmanagerpb.Secret{Name: secret}, nil
}

func (f *FakeGCPSecretManagerClient) DeleteSecret(_ context.Context, req *secretmanagerpb.DeleteSecretRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	secret := req.GetName()
	if err := f.Errors[secret]; err != nil {
		return err
	}
	if _, ok := f.Versions[secret]; !ok {
		return status.Errorf(codes.NotFound, "Secret [%s] not found", secret)
	}
	delete(f.Secrets, secret)
	delete(f.Versions, secret)
	return nil
}

func (f *FakeGCPSecretManagerClient) CheckAccess(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.AccessErr
}

func (f *FakeGCPSecretManagerClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
