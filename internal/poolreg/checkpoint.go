package poolreg

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
)

// checkpointKey is the single row the registry persists under — the
// checkpoint is a single opaque blob (spec.md §6), not a per-pool table,
// so one leveldb key is all we need. leveldb still buys us atomic,
// crash-safe writes and the same storage engine idiom the teacher uses for
// its own chain databases (core/rawdb), just scoped to one small file.
var checkpointKey = []byte("pool-checkpoint")

// CheckpointData is the persisted schema. It is forward-compatible: an
// older binary reading a newer file ignores fields it doesn't recognize
// because we round-trip through a JSON envelope rather than a fixed binary
// layout.
type CheckpointData struct {
	Pools     []Pool `json:"pools"`
	LastBlock uint64 `json:"last_block"`
}

// poolJSON mirrors Pool with hex-encoded addresses for JSON stability.
type poolJSON struct {
	Address string `json:"address"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
	Fee     uint32 `json:"fee"`
	Family  uint8  `json:"family"`
}

func (c CheckpointData) MarshalJSON() ([]byte, error) {
	pools := make([]poolJSON, len(c.Pools))
	for i, p := range c.Pools {
		pools[i] = poolJSON{
			Address: p.Address.Hex(),
			Token0:  p.Token0.Hex(),
			Token1:  p.Token1.Hex(),
			Fee:     p.Fee,
			Family:  uint8(p.Family),
		}
	}
	return json.Marshal(struct {
		Pools     []poolJSON `json:"pools"`
		LastBlock uint64     `json:"last_block"`
	}{pools, c.LastBlock})
}

func (c *CheckpointData) UnmarshalJSON(data []byte) error {
	var raw struct {
		Pools     []poolJSON `json:"pools"`
		LastBlock uint64     `json:"last_block"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.LastBlock = raw.LastBlock
	c.Pools = make([]Pool, len(raw.Pools))
	for i, p := range raw.Pools {
		c.Pools[i] = Pool{
			Address: common.HexToAddress(p.Address),
			Token0:  common.HexToAddress(p.Token0),
			Token1:  common.HexToAddress(p.Token1),
			Fee:     p.Fee,
			Family:  Family(p.Family),
		}
	}
	return nil
}

// Checkpoint owns the on-disk leveldb store (the directory passed to
// OpenCheckpoint) that holds the pool checkpoint.
type Checkpoint struct {
	db *leveldb.DB
}

func OpenCheckpoint(path string) (*Checkpoint, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("poolreg: open checkpoint %s: %w", path, err)
	}
	return &Checkpoint{db: db}, nil
}

func (c *Checkpoint) Close() error { return c.db.Close() }

func (c *Checkpoint) Load() (*CheckpointData, error) {
	raw, err := c.db.Get(checkpointKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var data CheckpointData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("poolreg: decode checkpoint: %w", err)
	}
	return &data, nil
}

func (c *Checkpoint) Save(data *CheckpointData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.db.Put(checkpointKey, raw, nil)
}
