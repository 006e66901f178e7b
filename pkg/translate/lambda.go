package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/sirupsen/logrus"
)

// lambdaInvoker is the subset of the Lambda client used here.
type lambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaClient implements the Translator interface by invoking a translator
// deployed as an AWS Lambda function.
type LambdaClient struct {
	invoker      lambdaInvoker
	functionName string
	logger       *logrus.Logger
}

// LambdaRequest is the payload sent to the translator function.
type LambdaRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Mode       string `json:"mode,omitempty"`
}

// LambdaResponse is the payload returned by the translator function.
type LambdaResponse struct {
	Translation string `json:"translation"`
	Error       string `json:"error,omitempty"`
}

// NewLambdaClient loads the default AWS configuration and targets functionName.
func NewLambdaClient(ctx context.Context, functionName string, logger *logrus.Logger) (*LambdaClient, error) {
	if functionName == "" {
		return nil, errors.New("lambda engine needs a function name")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newLambdaClient(lambda.NewFromConfig(cfg), functionName, logger), nil
}

func newLambdaClient(invoker lambdaInvoker, functionName string, logger *logrus.Logger) *LambdaClient {
	if logger == nil {
		logger = logrus.New()
	}
	return &LambdaClient{invoker: invoker, functionName: functionName, logger: logger}
}

// Translate invokes the function synchronously with a single text.
func (c *LambdaClient) Translate(ctx context.Context, text, sourceLang, targetLang, mode string) (string, error) {
	payload, err := json.Marshal(LambdaRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Mode:       mode,
	})
	if err != nil {
		return "", engineErr(EngineLambda, "translate", fmt.Errorf("failed to marshal request: %w", err))
	}

	out, err := c.invoker.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(c.functionName),
		Payload:      payload,
	})
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"function": c.functionName,
		}).Error("Lambda invocation failed")
		return "", engineErr(EngineLambda, "translate", fmt.Errorf("%w: failed to invoke %s: %v", ErrUnavailable, c.functionName, err))
	}
	if out.FunctionError != nil {
		return "", engineErr(EngineLambda, "translate", fmt.Errorf("lambda error: %s: %s", aws.ToString(out.FunctionError), out.Payload))
	}

	var resp LambdaResponse
	if err := json.Unmarshal(out.Payload, &resp); err != nil {
		return "", engineErr(EngineLambda, "translate", fmt.Errorf("failed to parse response: %w", err))
	}
	if resp.Error != "" {
		return "", engineErr(EngineLambda, "translate", fmt.Errorf("translator error: %s", resp.Error))
	}
	return resp.Translation, nil
}

// CheckHealth is a no-op; Lambda functions are started on demand.
func (c *LambdaClient) CheckHealth(ctx context.Context) error {
	return nil
}

// SupportedLanguages returns the common language list.
func (c *LambdaClient) SupportedLanguages(ctx context.Context) ([]string, error) {
	return copyLanguages(), nil
}
