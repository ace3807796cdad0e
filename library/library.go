// Package library persists model registries as immutable snapshots in a mesh
// store.
//
// A snapshot consists of one compressed blob per model cloud under
// objects/<snapshot-id>/, a JSON manifest under manifests/, and the
// current-snapshot pointer naming the manifest. Blobs are never rewritten;
// Save publishes a complete new snapshot and flips the pointer last, so a
// reader never observes a half-written snapshot.
package library

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/recogo/codec"
	"github.com/hupe1980/recogo/internal/blockio"
	"github.com/hupe1980/recogo/internal/hash"
	"github.com/hupe1980/recogo/meshstore"
	"github.com/hupe1980/recogo/model"
	"github.com/hupe1980/recogo/registry"
	"github.com/hupe1980/recogo/resource"
)

const (
	// FormatVersion is written to every manifest and checked on load.
	FormatVersion = 1

	manifestPrefix = "manifests/"
	objectPrefix   = "objects/"

	pointSize = 24 // three little-endian float64 coordinates
)

var (
	// ErrUnsupportedVersion is returned when a manifest was written by an
	// incompatible format version.
	ErrUnsupportedVersion = errors.New("library: unsupported manifest version")
	// ErrChecksumMismatch is returned when a blob fails integrity
	// validation against its manifest entry.
	ErrChecksumMismatch = errors.New("library: blob checksum mismatch")
	// ErrMalformedCloud is returned when a decompressed cloud payload does
	// not decode to the expected points.
	ErrMalformedCloud = errors.New("library: malformed cloud payload")
)

// Manifest describes one library snapshot.
type Manifest struct {
	Version     int          `json:"version"`
	SnapshotID  string       `json:"snapshot_id"`
	CreatedAt   time.Time    `json:"created_at"`
	Codec       string       `json:"codec"`
	Compression string       `json:"compression"`
	Objects     []ObjectInfo `json:"objects"`
}

// ObjectInfo describes one stored model cloud.
type ObjectInfo struct {
	ID model.ObjectID `json:"id"`
	// Blob is the store name of the compressed cloud payload.
	Blob string `json:"blob"`
	// Points is the number of points in the cloud.
	Points int `json:"points"`
	// Checksum is the CRC32C of the blob payload as stored.
	Checksum uint32 `json:"checksum"`
}

// Options configure snapshot save and load.
type Options struct {
	// Codec encodes and decodes manifests. Defaults to codec.Default. All
	// built-in codecs produce JSON; the manifest records the codec name.
	Codec codec.Codec

	// Compression frames object cloud payloads. Defaults to blockio.ZSTD.
	Compression blockio.Type

	// Controller rate limits save and load transfers when its IO limit is
	// configured. Optional.
	Controller *resource.Controller

	// Concurrency bounds parallel blob transfers.
	Concurrency int
}

// DefaultOptions holds the defaults applied by New.
var DefaultOptions = Options{
	Compression: blockio.ZSTD,
	Concurrency: 4,
}

// Library saves and loads registry snapshots against a store.
type Library struct {
	store meshstore.Store
	opts  Options
}

// New creates a Library on top of the given store.
func New(store meshstore.Store, optFns ...func(o *Options)) *Library {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &Library{
		store: store,
		opts:  opts,
	}
}

// Save writes all registered model clouds as a new snapshot and flips the
// current-snapshot pointer to it. It returns the published manifest.
func (l *Library) Save(ctx context.Context, reg *registry.Registry) (*Manifest, error) {
	snapshotID := uuid.NewString()

	type pending struct {
		info    ObjectInfo
		payload []byte
	}

	var blobs []pending

	for obj := range reg.All() {
		payload, err := blockio.Compress(encodeCloud(obj.Cloud), l.opts.Compression)
		if err != nil {
			return nil, fmt.Errorf("compress cloud %d: %w", obj.ID, err)
		}

		blobs = append(blobs, pending{
			info: ObjectInfo{
				ID:       obj.ID,
				Blob:     fmt.Sprintf("%s%s/%d.bin", objectPrefix, snapshotID, obj.ID),
				Points:   len(obj.Cloud),
				Checksum: hash.CRC32C(payload),
			},
			payload: payload,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)

	for _, b := range blobs {
		g.Go(func() error {
			if err := l.throttle(gctx, len(b.payload)); err != nil {
				return err
			}

			if err := l.store.Put(gctx, b.info.Blob, b.payload); err != nil {
				return fmt.Errorf("put blob %s: %w", b.info.Blob, err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	manifest := &Manifest{
		Version:     FormatVersion,
		SnapshotID:  snapshotID,
		CreatedAt:   time.Now().UTC(),
		Codec:       l.opts.Codec.Name(),
		Compression: l.opts.Compression.String(),
	}

	for _, b := range blobs {
		manifest.Objects = append(manifest.Objects, b.info)
	}

	data, err := l.opts.Codec.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	manifestName := ManifestName(snapshotID)

	if err := l.store.Put(ctx, manifestName, data); err != nil {
		return nil, fmt.Errorf("put manifest: %w", err)
	}

	// Flipping the pointer publishes the snapshot. Stores with commit
	// coordination make this a conditional write.
	if err := l.store.Put(ctx, meshstore.CurrentPointer, []byte(manifestName)); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}

	return manifest, nil
}

// ManifestName returns the manifest blob name of a snapshot, as accepted by
// LoadSnapshot.
func ManifestName(snapshotID string) string {
	return manifestPrefix + snapshotID + ".json"
}

// Load replaces the registry content with the current snapshot. The registry
// is only touched after every blob was fetched and validated.
func (l *Library) Load(ctx context.Context, reg *registry.Registry) (*Manifest, error) {
	manifestName, err := l.currentManifestName(ctx)
	if err != nil {
		return nil, err
	}

	return l.LoadSnapshot(ctx, reg, manifestName)
}

// LoadSnapshot replaces the registry content with a specific snapshot, named
// by its manifest blob as returned by Snapshots.
func (l *Library) LoadSnapshot(ctx context.Context, reg *registry.Registry, manifestName string) (*Manifest, error) {
	manifest, err := l.readManifest(ctx, manifestName)
	if err != nil {
		return nil, err
	}

	compression, err := blockio.ParseType(manifest.Compression)
	if err != nil {
		return nil, err
	}

	clouds := make([]model.PointCloud, len(manifest.Objects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)

	for i, info := range manifest.Objects {
		g.Go(func() error {
			cloud, err := l.fetchCloud(gctx, info, compression)
			if err != nil {
				return err
			}

			clouds[i] = cloud

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	reg.ClearObjects()

	for i, info := range manifest.Objects {
		if err := reg.AddObjectCloud(info.ID, clouds[i]); err != nil {
			return nil, fmt.Errorf("register cloud %d: %w", info.ID, err)
		}
	}

	return manifest, nil
}

// Snapshots returns the manifest names of all stored snapshots, sorted.
func (l *Library) Snapshots(ctx context.Context) ([]string, error) {
	return l.store.List(ctx, manifestPrefix)
}

// Prune deletes blobs that the current snapshot no longer references and
// returns how many were removed. Callers must ensure no Save runs
// concurrently, since a snapshot published mid-prune could reference blobs
// this walk considers unreachable.
func (l *Library) Prune(ctx context.Context) (int, error) {
	manifestName, err := l.currentManifestName(ctx)
	if err != nil {
		return 0, err
	}

	manifest, err := l.readManifest(ctx, manifestName)
	if err != nil {
		return 0, err
	}

	keep := make(map[string]bool, len(manifest.Objects)+1)
	keep[manifestName] = true

	for _, info := range manifest.Objects {
		keep[info.Blob] = true
	}

	names, err := l.store.List(ctx, "")
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, name := range names {
		if name == meshstore.CurrentPointer || keep[name] {
			continue
		}

		if err := l.store.Delete(ctx, name); err != nil {
			return removed, fmt.Errorf("delete %s: %w", name, err)
		}

		removed++
	}

	return removed, nil
}

// currentManifestName resolves the current-snapshot pointer.
func (l *Library) currentManifestName(ctx context.Context) (string, error) {
	blob, err := l.store.Open(ctx, meshstore.CurrentPointer)
	if err != nil {
		return "", fmt.Errorf("open current snapshot pointer: %w", err)
	}
	defer blob.Close()

	content, err := meshstore.ReadAll(blob)
	if err != nil {
		return "", err
	}

	return string(content), nil
}

// readManifest fetches and decodes a manifest blob.
func (l *Library) readManifest(ctx context.Context, name string) (*Manifest, error) {
	blob, err := l.store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", name, err)
	}
	defer blob.Close()

	data, err := meshstore.ReadAll(blob)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := l.opts.Codec.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", name, err)
	}

	if manifest.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, manifest.Version)
	}

	if _, ok := codec.ByName(manifest.Codec); !ok {
		return nil, fmt.Errorf("library: unknown manifest codec %q", manifest.Codec)
	}

	return &manifest, nil
}

// fetchCloud reads, validates, and decodes one object blob.
func (l *Library) fetchCloud(ctx context.Context, info ObjectInfo, compression blockio.Type) (model.PointCloud, error) {
	blob, err := l.store.Open(ctx, info.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", info.Blob, err)
	}
	defer blob.Close()

	if err := l.throttle(ctx, int(blob.Size())); err != nil {
		return nil, err
	}

	payload, err := meshstore.ReadAll(blob)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", info.Blob, err)
	}

	if hash.CRC32C(payload) != info.Checksum {
		return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, info.Blob)
	}

	raw, err := blockio.Decompress(payload, compression)
	if err != nil {
		return nil, fmt.Errorf("decompress blob %s: %w", info.Blob, err)
	}

	cloud, err := decodeCloud(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, info.Blob)
	}

	if len(cloud) != info.Points {
		return nil, fmt.Errorf("%w: %s has %d points, manifest says %d", ErrMalformedCloud, info.Blob, len(cloud), info.Points)
	}

	return cloud, nil
}

// throttle charges a transfer against the IO budget if one is configured.
func (l *Library) throttle(ctx context.Context, bytes int) error {
	if l.opts.Controller == nil {
		return nil
	}

	return l.opts.Controller.AcquireIO(ctx, bytes)
}

// encodeCloud serializes a cloud as consecutive little-endian x, y, z
// coordinates.
func encodeCloud(cloud model.PointCloud) []byte {
	data := make([]byte, 0, len(cloud)*pointSize)

	for _, p := range cloud {
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(p.X))
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(p.Y))
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(p.Z))
	}

	return data
}

func decodeCloud(data []byte) (model.PointCloud, error) {
	if len(data)%pointSize != 0 {
		return nil, ErrMalformedCloud
	}

	cloud := make(model.PointCloud, 0, len(data)/pointSize)

	for off := 0; off < len(data); off += pointSize {
		cloud = append(cloud, r3.Vector{
			X: math.Float64frombits(binary.LittleEndian.Uint64(data[off:])),
			Y: math.Float64frombits(binary.LittleEndian.Uint64(data[off+8:])),
			Z: math.Float64frombits(binary.LittleEndian.Uint64(data[off+16:])),
		})
	}

	return cloud, nil
}
