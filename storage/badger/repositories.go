package badger

import "github.com/poiesic/glyph/storage"

// OpenRepositories opens a persistent database at path and returns
// document and task repositories sharing it.
func OpenRepositories(path string) (storage.DocumentRepository, storage.TaskRepository, *Backend, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, nil, nil, err
	}
	return newRepositories(backend)
}

func newRepositories(backend *Backend) (storage.DocumentRepository, storage.TaskRepository, *Backend, error) {
	docRepo, err := NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	taskRepo, err := NewTaskRepository(backend)
	if err != nil {
		docRepo.Close()
		backend.Close()
		return nil, nil, nil, err
	}

	return docRepo, taskRepo, backend, nil
}
