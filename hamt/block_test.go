package hamt

import (
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// blockCID mints the dag-cbor CID a block's bytes hash to, the same
// convention mdstore.Store implementations use when asked to put a
// block without an explicit codec (sha2-256 multihash, dag-cbor codec).
func blockCID(data []byte) (cid.Cid, error) {
	h, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, h), nil
}

// NewBlock turns encoded bytes into a content-addressed block, the
// shape hamt_test's fake Store uses to mint CIDs for PutBlock without
// depending on mdstore.
func NewBlock(data []byte) (blocks.Block, error) {
	id, err := blockCID(data)
	if err != nil {
		return nil, err
	}
	return blocks.NewBlockWithCid(data, id)
}
