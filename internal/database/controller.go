package database

import (
	"errors"
	"path/filepath"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
)

// Kind names a photon database and the boundary it records.
type Kind string

const (
	DiffuseReflectance      Kind = "DiffuseReflectance"
	DiffuseTransmittance    Kind = "DiffuseTransmittance"
	SpecularReflectance     Kind = "SpecularReflectance"
	PMCDiffuseReflectance   Kind = "pMCDiffuseReflectance"
	PMCDiffuseTransmittance Kind = "pMCDiffuseTransmittance"
)

type kindInfo struct {
	photonFile    string
	collisionFile string
	boundary      string
	trigger       photon.StateFlag
	vbFlag        photon.StateFlag
}

var kinds = map[Kind]kindInfo{
	DiffuseReflectance: {
		photonFile: "DiffuseReflectanceDatabase",
		boundary:   "DiffuseReflectance",
		trigger:    photon.PseudoReflectedTissueBoundary,
		vbFlag:     photon.PseudoDiffuseReflectanceVirtualBoundary,
	},
	DiffuseTransmittance: {
		photonFile: "DiffuseTransmittanceDatabase",
		boundary:   "DiffuseTransmittance",
		trigger:    photon.PseudoTransmittedTissueBoundary,
		vbFlag:     photon.PseudoDiffuseTransmittanceVirtualBoundary,
	},
	SpecularReflectance: {
		photonFile: "SpecularReflectanceDatabase",
		boundary:   "SpecularReflectance",
		trigger:    photon.PseudoSpecularTissueBoundary,
		vbFlag:     photon.PseudoSpecularReflectanceVirtualBoundary,
	},
	PMCDiffuseReflectance: {
		photonFile:    "DiffuseReflectanceDatabase",
		collisionFile: "CollisionInfoDatabase",
		boundary:      "pMCDiffuseReflectance",
		trigger:       photon.PseudoReflectedTissueBoundary,
		vbFlag:        photon.PseudoDiffuseReflectanceVirtualBoundary,
	},
	PMCDiffuseTransmittance: {
		photonFile:    "DiffuseTransmittanceDatabase",
		collisionFile: "CollisionInfoTransmittanceDatabase",
		boundary:      "pMCDiffuseTransmittance",
		trigger:       photon.PseudoTransmittedTissueBoundary,
		vbFlag:        photon.PseudoDiffuseTransmittanceVirtualBoundary,
	},
}

func (k Kind) Validate() error {
	if _, ok := kinds[k]; !ok {
		return errs.Configuration("unknown database %q", string(k))
	}
	return nil
}

// PhotonFile is the file name of the photon records of k.
func (k Kind) PhotonFile() string { return kinds[k].photonFile }

// CollisionFile is empty unless k keeps collision info.
func (k Kind) CollisionFile() string { return kinds[k].collisionFile }

func (k Kind) IsPerturbation() bool { return kinds[k].collisionFile != "" }

// Trigger is the tissue boundary flag of the photons recorded in k.
func (k Kind) Trigger() photon.StateFlag { return kinds[k].trigger }

// ValidateKinds rejects unknown or duplicate kinds, and a plain and a
// perturbation database sharing a file.
func ValidateKinds(ks []Kind) error {
	files := make(map[string]Kind)
	for _, k := range ks {
		if err := k.Validate(); err != nil {
			return err
		}
		if other, ok := files[k.PhotonFile()]; ok {
			return errs.Configuration("databases %s and %s both write %s", other, k, k.PhotonFile())
		}
		files[k.PhotonFile()] = k
	}
	return nil
}

type entry struct {
	kind       Kind
	photons    *Writer
	collisions *Writer
}

// Controller routes dead photons to the databases they belong to.
// It belongs to one simulation.
type Controller struct {
	entries []entry
}

// NewController creates the databases of ks in dir.
// regions is the number of tissue regions recorded per collision record.
func NewController(dir string, ks []Kind, regions int) (*Controller, error) {
	if err := ValidateKinds(ks); err != nil {
		return nil, err
	}
	c := &Controller{}
	for _, k := range ks {
		info := kinds[k]
		e := entry{kind: k}
		var err error
		if e.photons, err = Create(dir, info.photonFile, info.boundary, 0); err != nil {
			c.Close()
			return nil, err
		}
		c.entries = append(c.entries, e)
		if info.collisionFile != "" {
			if c.entries[len(c.entries)-1].collisions, err = Create(dir, info.collisionFile, info.boundary, regions); err != nil {
				c.Close()
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Controller) Len() int { return len(c.entries) }

// WriteTerminal records a photon that left the tissue.
// info may be nil when no perturbation database is kept.
func (c *Controller) WriteTerminal(dp photon.DataPoint, info photon.CollisionInfo) error {
	for _, e := range c.entries {
		k := kinds[e.kind]
		if !dp.StateFlag.Has(k.trigger) || e.kind == SpecularReflectance {
			continue
		}
		if err := c.write(e, dp, info); err != nil {
			return err
		}
	}
	return nil
}

// WriteSpecular records the part of the source weight reflected at launch.
func (c *Controller) WriteSpecular(dp photon.DataPoint) error {
	for _, e := range c.entries {
		if e.kind == SpecularReflectance {
			return c.write(e, dp, nil)
		}
	}
	return nil
}

func (c *Controller) write(e entry, dp photon.DataPoint, info photon.CollisionInfo) error {
	dp.StateFlag = dp.StateFlag.Add(kinds[e.kind].vbFlag)
	if err := e.photons.WriteDataPoint(dp); err != nil {
		return err
	}
	if e.collisions != nil {
		return e.collisions.WriteCollisionInfo(info)
	}
	return nil
}

// Close closes every database and joins their errors.
func (c *Controller) Close() error {
	var all []error
	for _, e := range c.entries {
		if e.photons != nil {
			all = append(all, e.photons.Close())
		}
		if e.collisions != nil {
			all = append(all, e.collisions.Close())
		}
	}
	return errors.Join(all...)
}

// Pair opens the photon and, for perturbation kinds, the collision
// database of k in dir. collisions is nil for plain kinds.
func Pair(dir string, k Kind) (photons, collisions *Reader, err error) {
	if err := k.Validate(); err != nil {
		return nil, nil, err
	}
	if photons, err = Open(dir, k.PhotonFile()); err != nil {
		return nil, nil, err
	}
	if k.IsPerturbation() {
		if collisions, err = Open(dir, k.CollisionFile()); err != nil {
			photons.Close()
			return nil, nil, err
		}
		if collisions.Header().NumberOfElements != photons.Header().NumberOfElements {
			photons.Close()
			collisions.Close()
			return nil, nil, errs.IO(nil, "%s: %d photons but %d collision records",
				filepath.Join(dir, k.PhotonFile()), photons.Header().NumberOfElements, collisions.Header().NumberOfElements)
		}
	}
	return photons, collisions, nil
}
