// Package registry holds the set of object models a Recognizer fits
// against. Models are registered by ObjectID as sampled point clouds,
// either directly or by sampling a triangle mesh on registration.
//
// The registry is safe for concurrent reads. Mutation is a caller-enforced
// precondition: no AddObject, AddObjectCloud or ClearObjects call may be
// concurrent with an in-flight detection call. The registry does not guard
// against this; fitters read registered clouds without copying them.
package registry

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/golang/geo/r3"
	"github.com/hupe1980/recogo/mesh"
	"github.com/hupe1980/recogo/model"
	"github.com/hupe1980/recogo/resource"
)

const bytesPerPoint = 24 // 3 float64 coordinates

// ErrEmptyCloud is returned when a model is registered with no points.
var ErrEmptyCloud = errors.New("registry: empty point cloud")

// ErrMemoryBudget is returned when registering a model would exceed the
// memory budget of the attached resource controller.
var ErrMemoryBudget = errors.New("registry: memory budget exceeded")

// Object is a registered model: the sampled point cloud fitters align
// clusters against, with its centroid precomputed.
type Object struct {
	ID       model.ObjectID
	Cloud    model.PointCloud
	Centroid r3.Vector
}

// Options configure a Registry.
type Options struct {
	// SampleSize is the number of surface points sampled from a mesh
	// registered via AddObject.
	SampleSize int

	// SampleSeed seeds mesh sampling so registration is deterministic.
	SampleSeed int64

	// Controller, when set, accounts registered cloud memory against its
	// budget. Registration fails with ErrMemoryBudget once exhausted.
	Controller *resource.Controller
}

// DefaultOptions are the default Registry options.
var DefaultOptions = Options{
	SampleSize: 512,
	SampleSeed: 1,
}

// Registry maps ObjectIDs to registered models.
type Registry struct {
	opts Options

	mu      sync.RWMutex
	objects map[model.ObjectID]*Object
	ids     *roaring.Bitmap
}

// New creates an empty Registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		opts:    opts,
		objects: make(map[model.ObjectID]*Object),
		ids:     roaring.New(),
	}
}

// AddObject samples the mesh surface into a fit cloud and registers it
// under id, silently overwriting any model already registered there.
func (r *Registry) AddObject(id model.ObjectID, m mesh.Mesh) error {
	cloud, err := m.Sample(r.opts.SampleSize, func(o *mesh.SampleOptions) {
		o.Seed = r.opts.SampleSeed
	})
	if err != nil {
		return err
	}

	return r.addCloud(id, cloud)
}

// AddObjectCloud registers a pre-sampled cloud under id, silently
// overwriting any model already registered there. The cloud is copied;
// the caller keeps ownership of its slice.
func (r *Registry) AddObjectCloud(id model.ObjectID, cloud model.PointCloud) error {
	return r.addCloud(id, cloud.Clone())
}

// addCloud takes ownership of cloud.
func (r *Registry) addCloud(id model.ObjectID, cloud model.PointCloud) error {
	if cloud.Len() == 0 {
		return ErrEmptyCloud
	}

	obj := &Object{
		ID:       id,
		Cloud:    cloud,
		Centroid: cloud.Centroid(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.opts.Controller; c != nil {
		// Overwrites are accounted as a delta against the reservation the
		// old cloud already holds. A failed overwrite leaves the old model
		// registered.
		bytes := int64(cloud.Len()) * bytesPerPoint

		if old, ok := r.objects[id]; ok {
			bytes -= int64(old.Cloud.Len()) * bytesPerPoint
		}

		switch {
		case bytes > 0:
			if !c.TryAcquireMemory(bytes) {
				return fmt.Errorf("%w: %s needs %d bytes", ErrMemoryBudget, id, bytes)
			}
		case bytes < 0:
			c.ReleaseMemory(-bytes)
		}
	}

	r.objects[id] = obj
	r.ids.Add(uint32(id))

	return nil
}

// ClearObjects removes every registered model.
func (r *Registry) ClearObjects() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, obj := range r.objects {
		r.release(obj)
	}

	r.objects = make(map[model.ObjectID]*Object)
	r.ids.Clear()
}

// Remove unregisters id and reports whether it was present.
func (r *Registry) Remove(id model.ObjectID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.objects[id]
	if !ok {
		return false
	}

	r.release(obj)
	delete(r.objects, id)
	r.ids.Remove(uint32(id))

	return true
}

// release returns obj's memory reservation to the controller.
// Callers must hold r.mu.
func (r *Registry) release(obj *Object) {
	if c := r.opts.Controller; c != nil {
		c.ReleaseMemory(int64(obj.Cloud.Len()) * bytesPerPoint)
	}
}

// Get returns the model registered under id.
func (r *Registry) Get(id model.ObjectID) (*Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objects[id]

	return obj, ok
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id model.ObjectID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.ids.Contains(uint32(id))
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.objects)
}

// IDs returns the registered ObjectIDs in ascending order.
func (r *Registry) IDs() []model.ObjectID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]model.ObjectID, 0, len(r.objects))

	it := r.ids.Iterator()
	for it.HasNext() {
		ids = append(ids, model.ObjectID(it.Next()))
	}

	return ids
}

// IDSet returns a copy of the registered ID set.
func (r *Registry) IDSet() *roaring.Bitmap {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.ids.Clone()
}

// All returns an iterator over registered models in ascending ID order.
// The snapshot is taken when iteration starts; registrations made while
// iterating are not observed.
func (r *Registry) All() iter.Seq[*Object] {
	return func(yield func(*Object) bool) {
		r.mu.RLock()

		objs := make([]*Object, 0, len(r.objects))

		it := r.ids.Iterator()
		for it.HasNext() {
			if obj, ok := r.objects[model.ObjectID(it.Next())]; ok {
				objs = append(objs, obj)
			}
		}

		r.mu.RUnlock()

		for _, obj := range objs {
			if !yield(obj) {
				return
			}
		}
	}
}
