package production

import "github.com/jhoicas/produccion-api/internal/domain/entity"

// CanonicalStatus deriva el estado único a partir del par (status, approved legado).
// status manda; approved solo se consulta cuando status está vacío.
func CanonicalStatus(status string, approved bool) string {
	switch status {
	case entity.StatusPending, entity.StatusApproved:
		return status
	}
	if approved {
		return entity.StatusApproved
	}
	return entity.StatusPending
}

// Normalize deja Status canónico y Approved como espejo.
func Normalize(rec *entity.ProductionRecord) {
	if rec == nil {
		return
	}
	rec.Status = CanonicalStatus(rec.Status, rec.Approved)
	rec.Approved = rec.Status == entity.StatusApproved
}
