package fabric

import "github.com/relaydata/bufferfabric/pkg/logging"

// pkgLogger is the component-scoped logger used throughout this package.
// It is derived from the global logger once, at package initialisation; a
// later logging.InitGlobalLogger call does not change its level or output.
var pkgLogger = logging.GetGlobalLogger().WithComponent("fabric")
