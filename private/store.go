package private

import "github.com/wnfs-go/wnfs/mdstore"

// Store is the persistence dependency the private tree is built
// against — identical to the public tree's, since both CBOR node
// blocks and AEAD-sealed bodies live in the same backing store.
type Store = mdstore.Store
