package gateway

import "github.com/synthlang/gateway/internal/gatewayerr"

func errValidation(msg string) error {
	return gatewayerr.New(gatewayerr.Validation, msg, nil)
}
