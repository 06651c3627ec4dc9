package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/siteinventory/internal/logging"
	"github.com/JonMunkholm/siteinventory/internal/metrics"
)

// CreateSite validates fields (canonical names or any accepted header alias)
// and creates a site. Invalid input returns ValidationErrors; a taken siteId
// returns *DuplicateConflict.
func (s *Service) CreateSite(ctx context.Context, fields map[string]string) (*Site, error) {
	record, err := s.create(ctx, SiteEntity, fields)
	if err != nil {
		return nil, err
	}
	return record.(*Site), nil
}

// CreateDevice validates fields and creates a device. An unknown siteId is a
// foreign key *ConstraintViolation.
func (s *Service) CreateDevice(ctx context.Context, fields map[string]string) (*Device, error) {
	record, err := s.create(ctx, DeviceEntity, fields)
	if err != nil {
		return nil, err
	}
	return record.(*Device), nil
}

// UpdateSite applies patch to the site with the given id. Fields missing from
// patch keep their stored values; an empty value clears an optional field.
// Moving onto another site's siteId returns *DuplicateConflict and leaves the
// site unchanged. Devices follow a siteId rename.
func (s *Service) UpdateSite(ctx context.Context, id int64, patch map[string]string) (site *Site, err error) {
	defer func() { s.observe(ctx, SiteEntity, "update", id, err) }()

	existing, err := s.store.GetSite(ctx, id)
	if err != nil {
		return nil, err
	}

	def, _ := s.Definition(SiteEntity)
	verdict, err := s.merge(def, siteFields(existing), patch)
	if err != nil {
		return nil, err
	}
	if err := ResolveUpdate(ctx, def, s.store, id, verdict.Key); err != nil {
		return nil, err
	}

	site = verdict.Record.(*Site)
	if err := s.store.UpdateSite(ctx, id, site); err != nil {
		return nil, fmt.Errorf("update site %d: %w", id, err)
	}
	return site, nil
}

// UpdateDevice applies patch to the device with the given id.
func (s *Service) UpdateDevice(ctx context.Context, id int64, patch map[string]string) (device *Device, err error) {
	defer func() { s.observe(ctx, DeviceEntity, "update", id, err) }()

	existing, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	def, _ := s.Definition(DeviceEntity)
	verdict, err := s.merge(def, deviceFields(existing), patch)
	if err != nil {
		return nil, err
	}
	if err := ResolveUpdate(ctx, def, s.store, id, verdict.Key); err != nil {
		return nil, err
	}

	device = verdict.Record.(*Device)
	if err := s.store.UpdateDevice(ctx, id, device); err != nil {
		return nil, fmt.Errorf("update device %d: %w", id, err)
	}
	return device, nil
}

// DeleteSite removes a site. While devices reference it the delete fails
// with ErrSiteHasDevices, unless cascade is set, in which case its devices
// are deleted first.
func (s *Service) DeleteSite(ctx context.Context, id int64, cascade bool) (err error) {
	defer func() { s.observe(ctx, SiteEntity, "delete", id, err) }()

	site, err := s.store.GetSite(ctx, id)
	if err != nil {
		return err
	}

	n, err := s.store.CountDevices(ctx, DeviceFilter{SiteID: site.SiteID})
	if err != nil {
		return fmt.Errorf("count devices for %s: %w", site.SiteID, err)
	}
	if n > 0 {
		if !cascade {
			return fmt.Errorf("%w: %s has %d", ErrSiteHasDevices, site.SiteID, n)
		}
		removed, err := s.store.DeleteDevicesBySite(ctx, site.SiteID)
		if err != nil {
			return fmt.Errorf("delete devices for %s: %w", site.SiteID, err)
		}
		logging.FromContext(ctx).Info("cascade deleted devices", "site_id", site.SiteID, "devices", removed)
	}

	return s.store.DeleteSite(ctx, id)
}

// DeleteDevice removes a device.
func (s *Service) DeleteDevice(ctx context.Context, id int64) (err error) {
	defer func() { s.observe(ctx, DeviceEntity, "delete", id, err) }()
	return s.store.DeleteDevice(ctx, id)
}

// create runs one record through normalize, validate and resolve, then writes it.
func (s *Service) create(ctx context.Context, entity string, fields map[string]string) (record any, err error) {
	def, err := s.Definition(entity)
	if err != nil {
		return nil, err
	}
	defer func() {
		var id int64
		if err == nil {
			id = recordID(record)
		}
		s.observe(ctx, entity, "create", id, err)
	}()

	if err := checkFieldNames(def, fields); err != nil {
		return nil, err
	}

	verdict := NewValidator(def, s.now).Validate(Normalize(def, RawRow{Row: 1, Fields: fields}))
	if !verdict.Valid() {
		return nil, verdict.Errors
	}

	decision, err := NewResolver(def, s.store).Resolve(ctx, verdict)
	if err != nil {
		return nil, err
	}
	if decision.Outcome == RejectDuplicate {
		return nil, decision.Conflict
	}

	if err := NewCommitter(def, s.store).Commit(ctx, decision); err != nil {
		return nil, err
	}
	return decision.Record, nil
}

// merge overlays patch on the stored field values and validates the result.
func (s *Service) merge(def EntityDefinition, current, patch map[string]string) (Verdict, error) {
	if err := checkFieldNames(def, patch); err != nil {
		return Verdict{}, err
	}
	// Aliases of one field carry equal values by now.
	for name, v := range patch {
		spec, _ := def.resolveColumn(name)
		current[spec.Name] = v
	}

	verdict := NewValidator(def, s.now).Validate(Normalize(def, RawRow{Row: 1, Fields: current}))
	if !verdict.Valid() {
		return Verdict{}, verdict.Errors
	}
	return verdict, nil
}

// checkFieldNames rejects keys that match no field of def, and aliases of
// one field that disagree on its value.
func checkFieldNames(def EntityDefinition, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs ValidationErrors
	seen := make(map[string]string, len(names)) // canonical -> first key
	for _, name := range names {
		spec, ok := def.resolveColumn(name)
		if !ok {
			errs = append(errs, ValidationError{Field: name, Message: "unknown field"})
			continue
		}
		first, dup := seen[spec.Name]
		if !dup {
			seen[spec.Name] = name
			continue
		}
		if strings.TrimSpace(fields[first]) != strings.TrimSpace(fields[name]) {
			errs = append(errs, ValidationError{
				Field:   spec.Name,
				Message: fmt.Sprintf("conflicting values given as %q and %q", first, name),
			})
		}
	}
	if len(errs) > 0 {
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return errs
	}
	return nil
}

func (s *Service) observe(ctx context.Context, entity, op string, id int64, err error) {
	metrics.ObserveMutation(entity, op, err)
	log := logging.WithFields(ctx, "entity", entity, "op", op, "id", id, "actor", ActorFromContext(ctx))
	if err != nil {
		log.Warn("record mutation failed", "error", err)
		return
	}
	log.Info("record mutated")
}

func recordID(record any) int64 {
	switch r := record.(type) {
	case *Site:
		return r.ID
	case *Device:
		return r.ID
	}
	return 0
}
