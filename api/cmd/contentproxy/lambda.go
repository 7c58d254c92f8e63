package main

import (
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"content-proxy/api/internal/util"
)

var lambdaFunction string

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run one function under the AWS Lambda runtime (API Gateway proxy events)",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(util.FirstNonEmpty(lambdaFunction, cfg.Function))
		if name == "" {
			return fmt.Errorf("no function selected: pass --function or set FUNCTION_NAME")
		}
		a, err := buildApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		f, ok := a.handle.Function(name)
		if !ok {
			_ = a.Close()
			return fmt.Errorf("unknown function %q", name)
		}
		logger.Info("lambda starting", zap.String("function", f.Name))
		lambda.Start(httpadapter.New(f.Wrap(logger)).ProxyWithContext)
		return nil
	},
}

func init() {
	lambdaCmd.Flags().StringVar(&lambdaFunction, "function", "", "function to serve (default $FUNCTION_NAME)")
}
