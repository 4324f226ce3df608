package private

import golog "github.com/ipfs/go-log/v2"

// log is the private tree's logger, under the same "wnfs" subsystem
// cmd/wnfs's --verbose flag controls. Grounded on private.go's
// `log = golog.Logger("wnfs")`.
var log = golog.Logger("wnfs")
