package repository

import "errors"

// ErrCorrupted - файл хранилища существует, но не декодируется или нарушает инварианты коллекции.
// Отличается от отсутствующего файла, который означает пустую коллекцию.
var ErrCorrupted = errors.New("todo storage is corrupted")

// ErrUnsafeContent - в файле встретились конструкции YAML, которые не являются чистыми данными
var ErrUnsafeContent = errors.New("todo storage contains non-data yaml constructs")
