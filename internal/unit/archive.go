package unit

import (
	"context"
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
)

// UnitArchive — имя unit'а архивирования результатов.
const UnitArchive = "archive"

// ArchiveUnit сохраняет результаты предыдущих шагов в object storage.
//
// Сохранение идемпотентно: ключ строится из job_id, поэтому повторная
// попытка перезаписывает тот же объект.
//
// Input:
//
//	{
//	    "prefix": "processed"    // опциональный префикс ключа
//	}
//
// Data: {"object_ref": "...", "steps_archived": N}
type ArchiveUnit struct {
	storage *StorageClient
}

// NewArchiveUnit создаёт ArchiveUnit.
func NewArchiveUnit(storage *StorageClient) *ArchiveUnit {
	return &ArchiveUnit{storage: storage}
}

// Name возвращает имя unit'а.
func (u *ArchiveUnit) Name() string {
	return UnitArchive
}

// ValidateInput проверяет наличие job_id для ключа объекта.
func (u *ArchiveUnit) ValidateInput(input map[string]any) ValidationResult {
	if GetString(input, InputKeyJobID) == "" {
		return Invalid("job_id is required")
	}
	return Valid()
}

// ExecuteTask сохраняет previous_steps одним объектом.
func (u *ArchiveUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	prev := PreviousSteps(input)

	prefix := GetString(input, "prefix")
	if prefix == "" {
		prefix = "jobs"
	}
	key := fmt.Sprintf("%s/%s/results.json", prefix, GetString(input, InputKeyJobID))

	ref, err := u.storage.PutObject(ctx, key, prev)
	if err != nil {
		return nil, fmt.Errorf("archive results: %w", err)
	}

	return map[string]any{
		"object_ref":     ref,
		"steps_archived": len(prev),
	}, nil
}

// ProduceOutput собирает TaskOutput.
func (u *ArchiveUnit) ProduceOutput(raw map[string]any, input map[string]any) *domain.TaskOutput {
	return &domain.TaskOutput{
		Success: true,
		Data:    raw,
	}
}
