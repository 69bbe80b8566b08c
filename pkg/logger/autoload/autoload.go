// Package autoload initializes the global logger from the LOG_* environment
// on import. Blank-import it from a main package.
package autoload

import (
	configx "github.com/jtavares/agentic-support-rag/pkg/config"
	logx "github.com/jtavares/agentic-support-rag/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
