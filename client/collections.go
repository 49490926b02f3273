// Операции с коллекциями: создание, правка состава и вложенности.
// Изменение состава коллекции никогда не затрагивает версии продуктов.
package client

import (
	"context"

	"github.com/bigkaa/prodstore/catalog"
)

// GetCollection возвращает коллекцию по идентификатору.
func (c *Client) GetCollection(ctx context.Context, id string) (*catalog.Collection, error) {
	coll, err := c.store.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	groups, err := c.callerGroups(ctx)
	if err != nil {
		return nil, err
	}
	if !coll.Access.CanRead(c.cfg.Principal, groups) {
		return nil, &AuthorizationError{Operation: "read", EntityID: id}
	}
	return coll, nil
}

// CreateCollection создаёт коллекцию. Владельцем становится
// вызывающий, если владелец не задан.
func (c *Client) CreateCollection(ctx context.Context, coll catalog.Collection) (*catalog.Collection, error) {
	if coll.Access.Owner == "" {
		coll.Access.Owner = c.cfg.Principal
	}
	return c.store.CreateCollection(ctx, coll)
}

// DeleteCollection удаляет коллекцию. Продукты-члены не затрагиваются.
func (c *Client) DeleteCollection(ctx context.Context, id string) error {
	if _, err := c.writableCollection(ctx, id); err != nil {
		return err
	}
	return c.store.DeleteCollection(ctx, id)
}

// AddToCollection добавляет продукт в конец списка членов коллекции.
func (c *Client) AddToCollection(ctx context.Context, collectionID, productID string) (*catalog.Collection, error) {
	coll, err := c.writableCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	coll.AddMember(productID)
	return c.store.UpdateCollection(ctx, *coll)
}

// RemoveFromCollection убирает продукт из коллекции.
func (c *Client) RemoveFromCollection(ctx context.Context, collectionID, productID string) (*catalog.Collection, error) {
	coll, err := c.writableCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	coll.RemoveMember(productID)
	return c.store.UpdateCollection(ctx, *coll)
}

// NestCollection делает child дочерней коллекцией parent.
func (c *Client) NestCollection(ctx context.Context, parentID, childID string) (*catalog.Collection, error) {
	parent, err := c.writableCollection(ctx, parentID)
	if err != nil {
		return nil, err
	}
	for _, id := range parent.Children {
		if id == childID {
			return parent, nil
		}
	}
	parent.Children = append(parent.Children, childID)
	return c.store.UpdateCollection(ctx, *parent)
}

// UnnestCollection убирает child из дочерних коллекций parent.
func (c *Client) UnnestCollection(ctx context.Context, parentID, childID string) (*catalog.Collection, error) {
	parent, err := c.writableCollection(ctx, parentID)
	if err != nil {
		return nil, err
	}
	children := parent.Children[:0]
	for _, id := range parent.Children {
		if id != childID {
			children = append(children, id)
		}
	}
	parent.Children = children
	return c.store.UpdateCollection(ctx, *parent)
}

// writableCollection возвращает коллекцию, проверив право записи.
func (c *Client) writableCollection(ctx context.Context, id string) (*catalog.Collection, error) {
	coll, err := c.store.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	groups, err := c.callerGroups(ctx)
	if err != nil {
		return nil, err
	}
	if !coll.Access.CanWrite(c.cfg.Principal, groups) {
		return nil, &AuthorizationError{Operation: "write", EntityID: id}
	}
	return coll, nil
}
