package store

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/payments"
	"github.com/swiftcashproject/swiftnode/src/registry"
)

// Snapshots loads and dumps the registry and payments snapshots of a data
// directory. The badger mirror is optional.
type Snapshots struct {
	cacheFile    *File
	paymentsFile *File
	mirror       *BadgerStore

	registry *registry.Registry
	payments *payments.Manager

	logger *logrus.Entry
}

// NewSnapshots binds the snapshot files in dataDir to reg and pay. mirror may
// be nil.
func NewSnapshots(
	dataDir string,
	params *chain.Params,
	reg *registry.Registry,
	pay *payments.Manager,
	mirror *BadgerStore,
	logger *logrus.Entry,
) *Snapshots {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Snapshots{
		cacheFile:    NewFile(filepath.Join(dataDir, CacheFileName), CacheMagic, params, logger),
		paymentsFile: NewFile(filepath.Join(dataDir, PaymentsFileName), PaymentsMagic, params, logger),
		mirror:       mirror,
		registry:     reg,
		payments:     pay,
		logger:       logger,
	}
}

// LoadRegistry reads the registry snapshot. Unless dryRun, the registry is
// replaced with it and pruned. A missing file falls back to the mirror.
func (s *Snapshots) LoadRegistry(dryRun bool) ReadResult {
	start := time.Now()

	var snap registry.Snapshot
	res := s.read(s.cacheFile, &snap)
	if res != Ok {
		return res
	}

	s.logger.WithFields(logrus.Fields{
		"nodes":    len(snap.Nodes),
		"duration": time.Since(start),
	}).Debug("Loaded registry snapshot")

	if !dryRun {
		s.registry.Restore(&snap)
		s.registry.CheckAndRemove(true)
		s.logger.WithField("nodes", s.registry.Size()).Debug("Registry cleaned")
	}
	return Ok
}

// LoadPayments reads the payments snapshot. Unless dryRun, the payment votes
// are replaced with it and cleaned.
func (s *Snapshots) LoadPayments(dryRun bool) ReadResult {
	start := time.Now()

	var snap payments.Snapshot
	res := s.read(s.paymentsFile, &snap)
	if res != Ok {
		return res
	}

	s.logger.WithFields(logrus.Fields{
		"votes":    len(snap.Votes),
		"blocks":   len(snap.Blocks),
		"duration": time.Since(start),
	}).Debug("Loaded payments snapshot")

	if !dryRun {
		s.payments.Restore(&snap)
		s.payments.CleanPaymentList()
		s.logger.WithField("payments", s.payments.String()).Debug("Payments cleaned")
	}
	return Ok
}

// Load reads both snapshots into their components.
func (s *Snapshots) Load() {
	if res := s.LoadRegistry(false); res != Ok {
		s.logger.WithField("result", res).Warn("Registry snapshot not loaded")
	}
	if res := s.LoadPayments(false); res != Ok {
		s.logger.WithField("result", res).Warn("Payments snapshot not loaded")
	}
}

// Dump writes both snapshots.
func (s *Snapshots) Dump() error {
	if err := s.DumpRegistry(); err != nil {
		return err
	}
	return s.DumpPayments()
}

// DumpRegistry writes the registry snapshot.
func (s *Snapshots) DumpRegistry() error {
	return s.dump(s.cacheFile, func() ReadResult {
		var snap registry.Snapshot
		return s.cacheFile.Read(&snap)
	}, s.registry.Snapshot())
}

// DumpPayments writes the payments snapshot.
func (s *Snapshots) DumpPayments() error {
	return s.dump(s.paymentsFile, func() ReadResult {
		var snap payments.Snapshot
		return s.paymentsFile.Read(&snap)
	}, s.payments.Snapshot())
}

// dump verifies the existing file before replacing it. A missing file or a
// recognised file with a bad payload is recreated; anything else is left for
// the operator.
func (s *Snapshots) dump(f *File, verify func() ReadResult, in interface{}) error {
	start := time.Now()
	logger := s.logger.WithField("file", filepath.Base(f.Path()))

	switch res := verify(); res {
	case Ok:
	case FileError:
		logger.Debug("Missing snapshot file, will try to recreate")
	case IncorrectFormat:
		logger.Warn("Magic is ok but data has invalid format, will try to recreate")
	default:
		return fmt.Errorf("%s: file format is unknown or invalid (%s), please fix it manually", f.Path(), res)
	}

	if err := f.Write(in); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.Put(f.Magic(), in); err != nil {
			logger.WithError(err).Error("Failed to mirror snapshot")
		}
	}

	logger.WithField("duration", time.Since(start)).Debug("Snapshot dump finished")
	return nil
}

func (s *Snapshots) read(f *File, out interface{}) ReadResult {
	res := f.Read(out)
	if res != FileError || s.mirror == nil {
		return res
	}
	mres, err := s.mirror.Get(f.Magic(), out)
	if err != nil {
		s.logger.WithError(err).Debug("No mirrored snapshot")
		return FileError
	}
	if mres == Ok {
		s.logger.WithField("magic", f.Magic()).Info("Bootstrapped from mirrored snapshot")
	}
	return mres
}
