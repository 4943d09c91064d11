package aws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	return &sns.PublishOutput{}, f.err
}

func TestSNSClientPublishJSON(t *testing.T) {
	fake := &fakeSNS{}
	client := &SNSClient{client: fake}

	err := client.PublishJSON(context.Background(), "arn:topic", "order.created", map[string]int{"orders": 2})
	require.NoError(t, err)

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "arn:topic", *in.TopicArn)
	assert.JSONEq(t, `{"orders":2}`, *in.Message)
	assert.Equal(t, "order.created", *in.MessageAttributes["event_type"].StringValue)
}

func TestSNSClientPublishErrors(t *testing.T) {
	fake := &fakeSNS{err: errors.New("boom")}
	client := &SNSClient{client: fake}

	assert.Error(t, client.Publish(context.Background(), "", "x", []byte("{}")))
	assert.Empty(t, fake.inputs)

	err := client.Publish(context.Background(), "arn:topic", "", []byte("{}"))
	assert.ErrorContains(t, err, "boom")
	assert.Nil(t, fake.inputs[0].MessageAttributes)
}

type fakeSecrets struct {
	calls int
	value *string
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestSecretsClientCachesValues(t *testing.T) {
	value := "s3cr3t"
	fake := &fakeSecrets{value: &value}
	client := &SecretsClient{client: fake, cache: map[string]string{}}

	for i := 0; i < 3; i++ {
		got, err := client.GetSecret(context.Background(), "shopnow/jwt")
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t", got)
	}
	assert.Equal(t, 1, fake.calls)
}

func TestSecretsClientRejectsBinarySecrets(t *testing.T) {
	client := &SecretsClient{client: &fakeSecrets{}, cache: map[string]string{}}

	_, err := client.GetSecret(context.Background(), "binary")
	assert.ErrorContains(t, err, "no string value")
	assert.ErrorIs(t, err, ErrBinarySecret)
	assert.Empty(t, client.cache)
}

// gatedSecrets holds every lookup until release is closed.
type gatedSecrets struct {
	calls   atomic.Int32
	release chan struct{}
}

func (f *gatedSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls.Add(1)
	<-f.release
	value := "shared"
	return &secretsmanager.GetSecretValueOutput{SecretString: &value}, nil
}

func TestSecretsClientSharesConcurrentLookups(t *testing.T) {
	fake := &gatedSecrets{release: make(chan struct{})}
	client := &SecretsClient{client: fake, cache: map[string]string{}}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := client.GetSecret(context.Background(), "shopnow/stripe")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	// let the goroutines pile up on the first lookup
	time.Sleep(20 * time.Millisecond)
	close(fake.release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestMetricsClientDisabledIsNoop(t *testing.T) {
	var nilClient *MetricsClient
	assert.False(t, nilClient.IsEnabled())
	assert.NoError(t, nilClient.RecordCount(context.Background(), MetricOrdersCreated, nil))

	disabled := &MetricsClient{namespace: "ShopNow"}
	assert.NoError(t, disabled.RecordValue(context.Background(), MetricOrderValue, 10, nil))
}
