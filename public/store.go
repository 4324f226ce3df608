package public

import "github.com/wnfs-go/wnfs/mdstore"

// Store is the block-level dependency the public tree is built on.
type Store = mdstore.Store
