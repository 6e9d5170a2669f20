package translator

import (
	"context"
	"fmt"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
)

var (
	once       sync.Once
	translator *gst.ShaderTranslator
	initErr    error
)

// GetTranslator returns the shared WebGL2 to desktop GLSL translator.
func GetTranslator() (*gst.ShaderTranslator, error) {
	once.Do(func() {
		translator, initErr = gst.NewShaderTranslator(context.Background())
		if initErr != nil {
			initErr = fmt.Errorf("create shader translator: %w", initErr)
		}
	})
	return translator, initErr
}
