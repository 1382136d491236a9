package store

import (
	"context"
	"sort"
	"sync"
	"time"

	dErrors "onboard/pkg/domain-errors"

	"onboard/internal/onboarding/models"
)

// Memory implements every entity store with mutex-guarded maps. Values are
// copied on the way in and out so callers never alias stored state.
type Memory struct {
	mu         sync.RWMutex
	processes  map[string]models.Process
	identities map[string]models.IdentityVerification
	documents  map[string]models.DocumentVerification
	results    map[string]models.DocumentResult
	payloads   map[string]models.DocumentPayload
	otps       map[string]models.Otp
	scaResults map[string]models.ScaResult
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		processes:  make(map[string]models.Process),
		identities: make(map[string]models.IdentityVerification),
		documents:  make(map[string]models.DocumentVerification),
		results:    make(map[string]models.DocumentResult),
		payloads:   make(map[string]models.DocumentPayload),
		otps:       make(map[string]models.Otp),
		scaResults: make(map[string]models.ScaResult),
	}
}

// Stores exposes the memory store through the per-entity interfaces.
func (m *Memory) Stores() Stores {
	return Stores{
		Processes:             (*memoryProcesses)(m),
		IdentityVerifications: (*memoryIdentities)(m),
		Documents:             (*memoryDocuments)(m),
		DocumentResults:       (*memoryResults)(m),
		Payloads:              (*memoryPayloads)(m),
		Otps:                  (*memoryOtps)(m),
		ScaResults:            (*memoryScaResults)(m),
	}
}

func errNotFound(what string) error {
	return dErrors.New(dErrors.CodeNotFound, what+" not found")
}

type memoryProcesses Memory

func (m *memoryProcesses) Create(_ context.Context, process *models.Process) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processes[process.ID] = *process
	return nil
}

func (m *memoryProcesses) Update(_ context.Context, process *models.Process) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.processes[process.ID]; !ok {
		return errNotFound("process")
	}
	m.processes[process.ID] = *process
	return nil
}

func (m *memoryProcesses) FindByID(_ context.Context, id string) (*models.Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.processes[id]
	if !ok {
		return nil, errNotFound("process")
	}
	return &p, nil
}

func (m *memoryProcesses) FindByIDForUpdate(ctx context.Context, id string) (*models.Process, error) {
	// The memory store serializes through its mutex; a row lock is moot.
	return m.FindByID(ctx, id)
}

func (m *memoryProcesses) FindByActivationID(_ context.Context, activationID string) (*models.Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.processes {
		if p.ActivationID == activationID {
			found := p
			return &found, nil
		}
	}
	return nil, errNotFound("process")
}

func (m *memoryProcesses) FindActiveByUserID(_ context.Context, userID string) (*models.Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest *models.Process
	for _, p := range m.processes {
		if p.UserID != userID {
			continue
		}
		if p.Status != models.ProcessActivationInProgress && p.Status != models.ProcessVerificationInProgress {
			continue
		}
		candidate := p
		if newest == nil || candidate.CreatedAt.After(newest.CreatedAt) {
			newest = &candidate
		}
	}
	if newest == nil {
		return nil, errNotFound("process")
	}
	return newest, nil
}

func (m *memoryProcesses) FindIDsByStatusCreatedBefore(_ context.Context, status models.ProcessStatus, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, p := range m.processes {
		if p.Status == status && p.CreatedAt.Before(before) {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryProcesses) FindIDsCreatedBefore(_ context.Context, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, p := range m.processes {
		if p.CreatedAt.Before(before) && p.Status != models.ProcessFinished && p.Status != models.ProcessFailed {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryProcesses) Terminate(_ context.Context, ids []string, errorDetail string, origin models.ErrorOrigin) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	now := time.Now()
	for _, id := range ids {
		p, ok := m.processes[id]
		if !ok || p.Status == models.ProcessFailed {
			continue
		}
		p.Status = models.ProcessFailed
		p.ErrorDetail = errorDetail
		p.ErrorOrigin = origin
		p.UpdatedAt = now
		p.FailedAt = &now
		m.processes[id] = p
		changed++
	}
	return changed, nil
}

type memoryIdentities Memory

func (m *memoryIdentities) Create(_ context.Context, iv *models.IdentityVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[iv.ID] = *iv
	return nil
}

func (m *memoryIdentities) Update(_ context.Context, iv *models.IdentityVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[iv.ID]; !ok {
		return errNotFound("identity verification")
	}
	m.identities[iv.ID] = *iv
	return nil
}

func (m *memoryIdentities) FindByID(_ context.Context, id string) (*models.IdentityVerification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	iv, ok := m.identities[id]
	if !ok {
		return nil, errNotFound("identity verification")
	}
	return &iv, nil
}

func (m *memoryIdentities) FindLatestByActivationID(_ context.Context, activationID string) (*models.IdentityVerification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest *models.IdentityVerification
	for _, iv := range m.identities {
		if iv.ActivationID != activationID {
			continue
		}
		candidate := iv
		if newest == nil || candidate.CreatedAt.After(newest.CreatedAt) {
			newest = &candidate
		}
	}
	if newest == nil {
		return nil, errNotFound("identity verification")
	}
	return newest, nil
}

func (m *memoryIdentities) ListByPhaseAndStatus(_ context.Context, phase models.Phase, status models.Status) ([]*models.IdentityVerification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.IdentityVerification
	for _, iv := range m.identities {
		if iv.Phase == phase && iv.Status == status {
			candidate := iv
			out = append(out, &candidate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryIdentities) FindNotCompletedIDs(_ context.Context, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, iv := range m.identities {
		if iv.Phase != models.PhaseCompleted && iv.CreatedAt.Before(before) {
			ids = append(ids, iv.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryIdentities) FindNotCompletedIDsByProcessIDs(_ context.Context, processIDs []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(processIDs))
	for _, id := range processIDs {
		wanted[id] = true
	}
	var ids []string
	for _, iv := range m.identities {
		if wanted[iv.ProcessID] && iv.Phase != models.PhaseCompleted {
			ids = append(ids, iv.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryIdentities) Terminate(_ context.Context, ids []string, errorDetail string, origin models.ErrorOrigin) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	now := time.Now()
	for _, id := range ids {
		iv, ok := m.identities[id]
		if !ok || iv.Status == models.StatusFailed {
			continue
		}
		iv.Status = models.StatusFailed
		iv.ErrorDetail = errorDetail
		iv.ErrorOrigin = origin
		iv.UpdatedAt = now
		iv.FailedAt = &now
		m.identities[id] = iv
		changed++
	}
	return changed, nil
}

type memoryDocuments Memory

func (m *memoryDocuments) Create(_ context.Context, doc *models.DocumentVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ID] = *doc
	return nil
}

func (m *memoryDocuments) Update(_ context.Context, doc *models.DocumentVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[doc.ID]; !ok {
		return errNotFound("document verification")
	}
	m.documents[doc.ID] = *doc
	return nil
}

func (m *memoryDocuments) FindByID(_ context.Context, id string) (*models.DocumentVerification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, errNotFound("document verification")
	}
	return &doc, nil
}

func (m *memoryDocuments) list(filter func(models.DocumentVerification) bool) []*models.DocumentVerification {
	var out []*models.DocumentVerification
	for _, doc := range m.documents {
		if filter(doc) {
			candidate := doc
			out = append(out, &candidate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memoryDocuments) ListByIdentityVerification(_ context.Context, ivID string) ([]*models.DocumentVerification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list(func(d models.DocumentVerification) bool {
		return d.IdentityVerificationID == ivID
	}), nil
}

func (m *memoryDocuments) ListUsedForVerification(_ context.Context, ivID string) ([]*models.DocumentVerification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list(func(d models.DocumentVerification) bool {
		return d.IdentityVerificationID == ivID && d.UsedForVerification && d.Status != models.DocumentDisposed
	}), nil
}

func (m *memoryDocuments) ListWithPhoto(_ context.Context, ivID string) ([]*models.DocumentVerification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list(func(d models.DocumentVerification) bool {
		return d.IdentityVerificationID == ivID && d.PhotoID != "" && d.Status != models.DocumentDisposed
	}), nil
}

func (m *memoryDocuments) ListByStatusCreatedBefore(_ context.Context, status models.DocumentStatus, before time.Time) ([]*models.DocumentVerification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list(func(d models.DocumentVerification) bool {
		return d.Status == status && d.CreatedAt.Before(before)
	}), nil
}

func (m *memoryDocuments) ListByStatus(_ context.Context, status models.DocumentStatus) ([]*models.DocumentVerification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list(func(d models.DocumentVerification) bool {
		return d.Status == status
	}), nil
}

func (m *memoryDocuments) FindExpiredIDs(_ context.Context, statuses []models.DocumentStatus, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	statusSet := make(map[models.DocumentStatus]bool, len(statuses))
	for _, s := range statuses {
		statusSet[s] = true
	}
	var ids []string
	for _, d := range m.documents {
		if statusSet[d.Status] && d.CreatedAt.Before(before) {
			ids = append(ids, d.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryDocuments) FindIDsByIdentityVerificationIDs(_ context.Context, ivIDs []string, statuses []models.DocumentStatus) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(ivIDs))
	for _, id := range ivIDs {
		wanted[id] = true
	}
	statusSet := make(map[models.DocumentStatus]bool, len(statuses))
	for _, s := range statuses {
		statusSet[s] = true
	}
	var ids []string
	for _, d := range m.documents {
		if wanted[d.IdentityVerificationID] && statusSet[d.Status] {
			ids = append(ids, d.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryDocuments) Terminate(_ context.Context, ids []string, errorDetail string, origin models.ErrorOrigin) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	now := time.Now()
	for _, id := range ids {
		d, ok := m.documents[id]
		if !ok || d.Status == models.DocumentFailed {
			continue
		}
		d.Status = models.DocumentFailed
		d.ErrorDetail = errorDetail
		d.ErrorOrigin = origin
		d.UpdatedAt = now
		m.documents[id] = d
		changed++
	}
	return changed, nil
}

type memoryResults Memory

func (m *memoryResults) Create(_ context.Context, result *models.DocumentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.ID] = *result
	return nil
}

func (m *memoryResults) FindLatestForDocument(_ context.Context, documentID string, phase models.ProcessingPhase) (*models.DocumentResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest *models.DocumentResult
	for _, r := range m.results {
		if r.DocumentVerificationID != documentID || r.Phase != phase {
			continue
		}
		candidate := r
		if newest == nil || candidate.CreatedAt.After(newest.CreatedAt) {
			newest = &candidate
		}
	}
	if newest == nil {
		return nil, errNotFound("document result")
	}
	return newest, nil
}

func (m *memoryResults) ListForDocument(_ context.Context, documentID string) ([]*models.DocumentResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.DocumentResult
	for _, r := range m.results {
		if r.DocumentVerificationID == documentID {
			candidate := r
			out = append(out, &candidate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memoryPayloads Memory

func (m *memoryPayloads) Create(_ context.Context, payload *models.DocumentPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[payload.ID] = *payload
	return nil
}

func (m *memoryPayloads) FindByID(_ context.Context, id string) (*models.DocumentPayload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payloads[id]
	if !ok {
		return nil, errNotFound("document payload")
	}
	return &p, nil
}

func (m *memoryPayloads) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.payloads, id)
	return nil
}

func (m *memoryPayloads) DeleteCreatedBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, p := range m.payloads {
		if p.CreatedAt.Before(before) {
			delete(m.payloads, id)
			deleted++
		}
	}
	return deleted, nil
}

type memoryOtps Memory

func (m *memoryOtps) Create(_ context.Context, otp *models.Otp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps[otp.ID] = *otp
	return nil
}

func (m *memoryOtps) Update(_ context.Context, otp *models.Otp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.otps[otp.ID]; !ok {
		return errNotFound("otp")
	}
	m.otps[otp.ID] = *otp
	return nil
}

func (m *memoryOtps) FindNewestByProcessAndType(_ context.Context, processID string, otpType models.OtpType) (*models.Otp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest *models.Otp
	for _, o := range m.otps {
		if o.ProcessID != processID || o.Type != otpType {
			continue
		}
		candidate := o
		if newest == nil || candidate.CreatedAt.After(newest.CreatedAt) {
			newest = &candidate
		}
	}
	if newest == nil {
		return nil, errNotFound("otp")
	}
	return newest, nil
}

func (m *memoryOtps) FindExpiredIDs(_ context.Context, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, o := range m.otps {
		if o.Status == models.OtpActive && o.CreatedAt.Before(before) {
			ids = append(ids, o.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryOtps) Terminate(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	now := time.Now()
	for _, id := range ids {
		o, ok := m.otps[id]
		if !ok || o.Status != models.OtpActive {
			continue
		}
		o.Status = models.OtpFailed
		o.ErrorDetail = models.ErrorOtpCanceled
		o.ErrorOrigin = models.OriginOtpVerification
		o.UpdatedAt = now
		o.FailedAt = &now
		m.otps[id] = o
		changed++
	}
	return changed, nil
}

type memoryScaResults Memory

func (m *memoryScaResults) Create(_ context.Context, result *models.ScaResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scaResults[result.ID] = *result
	return nil
}

func (m *memoryScaResults) Update(_ context.Context, result *models.ScaResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scaResults[result.ID]; !ok {
		return errNotFound("sca result")
	}
	m.scaResults[result.ID] = *result
	return nil
}

func (m *memoryScaResults) FindLatestByIdentityVerification(_ context.Context, ivID string) (*models.ScaResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest *models.ScaResult
	for _, r := range m.scaResults {
		if r.IdentityVerificationID != ivID {
			continue
		}
		candidate := r
		if newest == nil || candidate.CreatedAt.After(newest.CreatedAt) {
			newest = &candidate
		}
	}
	if newest == nil {
		return nil, errNotFound("sca result")
	}
	return newest, nil
}
