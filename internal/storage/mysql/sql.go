package mysql

const cafeColumns = `
  id, mapbox_id, name, full_address, latitude, longitude, mapbox_data,
  description, website_url, instagram_url, hero_image_url, gallery_images,
  approved, created_at, updated_at`

const listCafesSQL = `SELECT` + cafeColumns + `
FROM cafes
ORDER BY created_at, id`

const getCafeSQL = `SELECT` + cafeColumns + `
FROM cafes
WHERE id = ?`

const insertCafeSQL = `
INSERT INTO cafes
  (id, mapbox_id, name, full_address, latitude, longitude, mapbox_data,
   description, website_url, instagram_url, hero_image_url, gallery_images, approved)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// updated_at is set explicitly so an unchanged snapshot still counts as a matched row.
const updateProviderSQL = `
UPDATE cafes SET
  name         = ?,
  full_address = ?,
  latitude     = ?,
  longitude    = ?,
  mapbox_data  = ?,
  updated_at   = CURRENT_TIMESTAMP(3)
WHERE mapbox_id = ?`
