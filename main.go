package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pictaflux/flowpaint/cmd"

	// Backends registrieren: onnx braucht den CGO-Build mit Tag 'onnx',
	// test laeuft ueberall ohne Modelldateien
	_ "github.com/pictaflux/flowpaint/ml/backend/onnx"
	_ "github.com/pictaflux/flowpaint/ml/backend/testbackend"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
